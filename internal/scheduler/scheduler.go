package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/granasat/partledger/internal/core/service"
)

// Scheduler runs the ledger invariant audit on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	auditSvc *service.AuditService
	schedule string
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(schedule string, auditSvc *service.AuditService, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:     cron.New(),
		auditSvc: auditSvc,
		schedule: schedule,
		logger:   logger,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	_, err := s.cron.AddFunc(s.schedule, s.runAudit)
	if err != nil {
		s.logger.Error("failed to schedule audit", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := s.auditSvc.Run(ctx)
	if err != nil {
		s.logger.Error("audit sweep failed", zap.Error(err))
		return
	}

	if !report.Clean() {
		s.logger.Error("audit found ledger mismatches",
			zap.Int("mismatches", len(report.Mismatches)))
	}
}
