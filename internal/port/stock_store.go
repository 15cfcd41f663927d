package port

import (
	"context"

	"github.com/granasat/partledger/internal/core/domain"
)

// StockStore persists stock lines and owns the per-line critical section.
// CreateStock and ApplyDelta commit the quantity write together with the
// matching transaction append as one atomic unit; they are called only by the
// ledger service.
type StockStore interface {
	// CreateStock inserts the line at quantity zero and applies the initial
	// delta in the same transaction. A failed append rolls back the insert.
	CreateStock(ctx context.Context, stock *domain.Stock, initial int, actor string) (*domain.StockMutation, error)

	// ApplyDelta adds delta to the current quantity under an exclusive
	// per-line lock and appends the transaction recording it. Returns
	// InsufficientStockError when the result would be negative; nothing is
	// applied in that case.
	ApplyDelta(ctx context.Context, stockID string, delta int, actor string) (*domain.StockMutation, error)

	// GetStock returns the line or NotFoundError.
	GetStock(ctx context.Context, id string) (*domain.Stock, error)

	// FindStock looks up the line for an exact (part, vendor) pair. Returns
	// nil without error when no line exists.
	FindStock(ctx context.Context, partID, vendorID string) (*domain.Stock, error)

	// SearchStock matches query as a substring of the denormalized part name,
	// vendor name, vendor code or vendor url. Ordering is stable for a given
	// store state.
	SearchStock(ctx context.Context, query string) ([]domain.Stock, error)

	// ListStock returns every line; used by the invariant auditor.
	ListStock(ctx context.Context) ([]domain.Stock, error)
}
