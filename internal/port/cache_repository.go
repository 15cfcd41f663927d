package port

import "context"

// CacheRepository fronts the ledger with a best-effort cache. The store stays
// the source of truth; a cold or stale cache only costs a database read.
type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// DeleteIdempotency releases a key so the request id can be retried.
	// Called when the guarded mutation failed without committing anything.
	DeleteIdempotency(ctx context.Context, key string) error

	// SetQuantity records the committed quantity of a stock line.
	SetQuantity(ctx context.Context, stockID string, quantity int) error

	// GetQuantity returns the cached quantity and whether the key was present.
	GetQuantity(ctx context.Context, stockID string) (int, bool, error)
}
