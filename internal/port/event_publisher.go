package port

import (
	"context"

	"github.com/granasat/partledger/internal/core/domain"
)

// EventPublisher delivers committed stock events to downstream consumers.
type EventPublisher interface {
	PublishStockEvent(ctx context.Context, event *domain.StockEvent) error
	Close() error
}
