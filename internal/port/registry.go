package port

import (
	"context"

	"github.com/granasat/partledger/internal/core/domain"
)

// Registry resolves part, vendor and storage-place identifiers against the
// registry service that owns them. Each method returns NotFoundError when the
// identifier does not resolve.
type Registry interface {
	ResolvePart(ctx context.Context, id string) (*domain.Part, error)
	ResolveVendor(ctx context.Context, id string) (*domain.Vendor, error)
	ResolveStoragePlace(ctx context.Context, id string) (*domain.StoragePlace, error)
}
