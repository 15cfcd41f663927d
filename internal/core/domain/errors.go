package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateRequest is returned when a mutation carries a request id that
// was already committed.
var ErrDuplicateRequest = errors.New("duplicate request")

// ValidationError reports malformed input. The caller must correct the
// request; retrying as-is will fail identically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unresolvable reference (part, vendor, storage
// place or stock line).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InsufficientStockError reports a delta that would drive the quantity
// negative. It carries the current quantity so the caller can adjust.
type InsufficientStockError struct {
	StockID string
	Current int
	Delta   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock %s: have %d, delta %d", e.StockID, e.Current, e.Delta)
}

// ConflictError reports lock contention on the per-stock critical section.
// Nothing was committed; the whole operation is safe to retry.
type ConflictError struct {
	StockID string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on stock %s: %v", e.StockID, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }
