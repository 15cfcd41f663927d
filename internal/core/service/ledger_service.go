package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/granasat/partledger/internal/core/domain"
	"github.com/granasat/partledger/internal/port"
)

// LedgerService is the only component allowed to mutate stock quantities. It
// validates requests, resolves registry references, delegates the atomic
// quantity-write/history-append pair to the store, and publishes events for
// committed mutations.
type LedgerService struct {
	store    port.StockStore
	txlog    port.TransactionLog
	cache    port.CacheRepository
	registry port.Registry
	events   chan domain.StockEvent
	logger   *zap.Logger
}

// CreateStockParams is the validated input for a new stock line.
type CreateStockParams struct {
	PartID         string
	VendorID       string
	VendorCode     string
	VendorURL      string
	ImageURL       string
	StoragePlaceID string
	Quantity       int
	Actor          string
	RequestID      string
}

// ModifyStockParams is the validated input for a quantity change.
type ModifyStockParams struct {
	StockID   string
	Delta     int
	Actor     string
	RequestID string
}

func NewLedgerService(store port.StockStore, txlog port.TransactionLog, cache port.CacheRepository, registry port.Registry, queueSize int, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LedgerService{
		store:    store,
		txlog:    txlog,
		cache:    cache,
		registry: registry,
		events:   make(chan domain.StockEvent, queueSize),
		logger:   logger,
	}
}

// CreateStock opens a new stock line and records its initial quantity as the
// first transaction. A repeated (part, vendor) pair deliberately creates a
// second independent line; top-ups must target an existing line via
// ModifyStock.
func (s *LedgerService) CreateStock(ctx context.Context, params CreateStockParams) (*domain.StockMutation, error) {
	switch {
	case params.Actor == "":
		return nil, &domain.ValidationError{Field: "actor", Reason: "must not be empty"}
	case params.PartID == "":
		return nil, &domain.ValidationError{Field: "part", Reason: "must not be empty"}
	case params.VendorID == "":
		return nil, &domain.ValidationError{Field: "vendor", Reason: "must not be empty"}
	case params.StoragePlaceID == "":
		return nil, &domain.ValidationError{Field: "storageplace", Reason: "must not be empty"}
	case params.Quantity < 0:
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	part, err := s.registry.ResolvePart(ctx, params.PartID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.registry.ResolveVendor(ctx, params.VendorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.ResolveStoragePlace(ctx, params.StoragePlaceID); err != nil {
		return nil, err
	}

	if err := s.checkIdempotency(ctx, params.RequestID); err != nil {
		return nil, err
	}

	stock := &domain.Stock{
		ID:             uuid.NewString(),
		PartID:         part.ID,
		VendorID:       vendor.ID,
		PartName:       part.Name,
		VendorName:     vendor.Name,
		VendorCode:     params.VendorCode,
		VendorURL:      params.VendorURL,
		ImageURL:       params.ImageURL,
		StoragePlaceID: params.StoragePlaceID,
	}

	mut, err := s.store.CreateStock(ctx, stock, params.Quantity, params.Actor)
	if err != nil {
		s.releaseIdempotency(ctx, params.RequestID)
		return nil, err
	}

	s.afterCommit(ctx, domain.EventStockCreated, mut)

	return mut, nil
}

// ModifyStock applies a signed delta to an existing line. The store rejects
// any delta that would drive the quantity negative; nothing is applied in
// that case.
func (s *LedgerService) ModifyStock(ctx context.Context, params ModifyStockParams) (*domain.StockMutation, error) {
	switch {
	case params.Actor == "":
		return nil, &domain.ValidationError{Field: "actor", Reason: "must not be empty"}
	case params.StockID == "":
		return nil, &domain.ValidationError{Field: "stock", Reason: "must not be empty"}
	case params.Delta == 0:
		return nil, &domain.ValidationError{Field: "quantity", Reason: "delta must not be zero"}
	}

	if err := s.checkIdempotency(ctx, params.RequestID); err != nil {
		return nil, err
	}

	mut, err := s.store.ApplyDelta(ctx, params.StockID, params.Delta, params.Actor)
	if err != nil {
		s.releaseIdempotency(ctx, params.RequestID)
		return nil, err
	}

	s.afterCommit(ctx, domain.EventStockAdjusted, mut)

	return mut, nil
}

// GetStock returns one line by id.
func (s *LedgerService) GetStock(ctx context.Context, id string) (*domain.Stock, error) {
	return s.store.GetStock(ctx, id)
}

// GetQuantity returns the current quantity of a line, served from the cache
// when possible.
func (s *LedgerService) GetQuantity(ctx context.Context, id string) (int, error) {
	if quantity, ok, err := s.cache.GetQuantity(ctx, id); err == nil && ok {
		return quantity, nil
	} else if err != nil {
		s.logger.Warn("quantity cache read failed", zap.String("stock_id", id), zap.Error(err))
	}

	stock, err := s.store.GetStock(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := s.cache.SetQuantity(ctx, id, stock.Quantity); err != nil {
		s.logger.Warn("quantity cache write failed", zap.String("stock_id", id), zap.Error(err))
	}

	return stock.Quantity, nil
}

// FindStock returns the line for an exact (part, vendor) pair or
// NotFoundError when no such line exists.
func (s *LedgerService) FindStock(ctx context.Context, partID, vendorID string) (*domain.Stock, error) {
	stock, err := s.store.FindStock(ctx, partID, vendorID)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, &domain.NotFoundError{Kind: "stock", ID: partID + "/" + vendorID}
	}

	return stock, nil
}

// SearchStock matches the query as a substring over the denormalized part and
// vendor fields.
func (s *LedgerService) SearchStock(ctx context.Context, query string) ([]domain.Stock, error) {
	return s.store.SearchStock(ctx, query)
}

// GetHistory returns the full transaction history of a line, oldest first.
func (s *LedgerService) GetHistory(ctx context.Context, stockID string) ([]domain.Transaction, error) {
	if _, err := s.store.GetStock(ctx, stockID); err != nil {
		return nil, err
	}

	return s.txlog.ListForStock(ctx, stockID)
}

// GetEventQueue exposes the committed-mutation events for the publish workers.
func (s *LedgerService) GetEventQueue() <-chan domain.StockEvent {
	return s.events
}

// Close stops event delivery. Pending events are still drained by the workers.
func (s *LedgerService) Close() {
	close(s.events)
}

func (s *LedgerService) checkIdempotency(ctx context.Context, requestID string) error {
	if requestID == "" {
		return nil
	}

	ok, err := s.cache.SetIdempotency(ctx, "ledger:req:"+requestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateRequest
	}

	return nil
}

// releaseIdempotency frees the request id after a mutation that committed
// nothing, so the caller can retry under the same id.
func (s *LedgerService) releaseIdempotency(ctx context.Context, requestID string) {
	if requestID == "" {
		return
	}

	if err := s.cache.DeleteIdempotency(ctx, "ledger:req:"+requestID); err != nil {
		s.logger.Warn("idempotency key release failed",
			zap.String("request_id", requestID), zap.Error(err))
	}
}

// afterCommit refreshes the quantity cache and queues the event. Both are
// best-effort: the mutation is already durable and must not be unwound.
func (s *LedgerService) afterCommit(ctx context.Context, eventType string, mut *domain.StockMutation) {
	if err := s.cache.SetQuantity(ctx, mut.Stock.ID, mut.Stock.Quantity); err != nil {
		s.logger.Warn("quantity cache refresh failed",
			zap.String("stock_id", mut.Stock.ID), zap.Error(err))
	}

	s.events <- domain.StockEvent{
		Type:      eventType,
		StockID:   mut.Stock.ID,
		PartID:    mut.Stock.PartID,
		VendorID:  mut.Stock.VendorID,
		Delta:     mut.Transaction.Delta,
		Quantity:  mut.Stock.Quantity,
		Actor:     mut.Transaction.Actor,
		Timestamp: time.Now().UTC(),
	}

	s.logger.Info("stock mutation committed",
		zap.String("stock_id", mut.Stock.ID),
		zap.Int("delta", mut.Transaction.Delta),
		zap.Int("quantity", mut.Stock.Quantity),
		zap.String("actor", mut.Transaction.Actor))
}
