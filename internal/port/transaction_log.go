package port

import (
	"context"

	"github.com/granasat/partledger/internal/core/domain"
)

// TransactionLog reads the append-only history. Appends happen only inside
// the stock store's mutation transaction; no other writer exists.
type TransactionLog interface {
	// ListForStock returns the full history of a line, oldest first.
	ListForStock(ctx context.Context, stockID string) ([]domain.Transaction, error)

	// SumDeltas recomputes the quantity from the full history. The auditor
	// checks this against the stored quantity rather than trusting the
	// denormalized resulting_quantity of the last row.
	SumDeltas(ctx context.Context, stockID string) (int, error)
}
