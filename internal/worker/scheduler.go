package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/config"
)

// Job is a named unit of periodic work returning how many rows it touched.
type Job func(ctx context.Context) (int, error)

// TokenPurger removes expired tokens.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int, error)
}

// OverdueMarker flips unpaid invoices past due.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// Scheduler runs background jobs on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler creates a scheduler that runs each job with a deadline.
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers job under spec. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		s.logger.Info("job disabled", zap.String("job", name))
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Run executes job once, logging the outcome.
func (s *Scheduler) Run(name string, job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	n, err := job(ctx)
	if err != nil {
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("job finished",
		zap.String("job", name),
		zap.Int("affected", n),
		zap.Duration("took", time.Since(start)))
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// StartScheduler wires the maintenance jobs and starts them.
func StartScheduler(cfg config.CronConfig, tokens TokenPurger, invoices OverdueMarker, logger *zap.Logger) (*Scheduler, error) {
	s := NewScheduler(logger, time.Minute)
	if err := s.Add("purge_expired_tokens", cfg.TokenCleanupSchedule, tokens.PurgeExpiredTokens); err != nil {
		return nil, err
	}
	if err := s.Add("mark_overdue_invoices", cfg.OverdueInvoiceSchedule, invoices.MarkOverdue); err != nil {
		return nil, err
	}
	s.Start()
	return s, nil
}
