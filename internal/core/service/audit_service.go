package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/granasat/partledger/internal/core/domain"
	"github.com/granasat/partledger/internal/port"
)

// AuditService sweeps the ledger and verifies that every stored quantity
// equals the sum of its transaction history. The sum is always recomputed
// from the full history; the denormalized resulting_quantity column is a
// read optimization, never the source of truth.
type AuditService struct {
	store   port.StockStore
	txlog   port.TransactionLog
	archive port.AuditArchive
	logger  *zap.Logger
}

// NewAuditService builds an auditor. archive may be nil, in which case
// reports are only logged.
func NewAuditService(store port.StockStore, txlog port.TransactionLog, archive port.AuditArchive, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuditService{
		store:   store,
		txlog:   txlog,
		archive: archive,
		logger:  logger,
	}
}

// Run performs one full sweep and returns the report.
func (s *AuditService) Run(ctx context.Context) (*domain.AuditReport, error) {
	stocks, err := s.store.ListStock(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.AuditReport{
		ID:         uuid.NewString(),
		CheckedAt:  time.Now().UTC(),
		StockCount: len(stocks),
	}

	for _, stock := range stocks {
		sum, err := s.txlog.SumDeltas(ctx, stock.ID)
		if err != nil {
			return nil, err
		}

		if sum != stock.Quantity {
			report.Mismatches = append(report.Mismatches, domain.AuditMismatch{
				StockID:  stock.ID,
				Quantity: stock.Quantity,
				SumDelta: sum,
			})
			s.logger.Error("ledger invariant violated",
				zap.String("stock_id", stock.ID),
				zap.Int("quantity", stock.Quantity),
				zap.Int("sum_delta", sum))
		}
	}

	if s.archive != nil {
		if err := s.archive.SaveReport(ctx, *report); err != nil {
			s.logger.Error("failed to archive audit report", zap.Error(err))
		}
	}

	s.logger.Info("audit sweep finished",
		zap.Int("stock_count", report.StockCount),
		zap.Int("mismatches", len(report.Mismatches)))

	return report, nil
}
