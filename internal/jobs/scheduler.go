// Package jobs runs periodic embedding maintenance sweeps on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweeper is the subset of job.Runner driven by the scheduler (ISP).
type sweeper interface {
	RetryAllFailed(ctx context.Context) (int, error)
	ReclaimStale(ctx context.Context) (int, error)
	RequeuePending(ctx context.Context) (int, error)
}

// Config holds cron specs (with a seconds field). An empty spec disables the sweep.
type Config struct {
	RetryFailedCron       string
	ReclaimCron           string
	RequeuePendingOnStart bool
}

// Scheduler owns the cron instance.
type Scheduler struct {
	cron    *cron.Cron
	sweeper sweeper
	cfg     Config
	logger  *zap.Logger
	ctx     context.Context
}

// NewScheduler creates a scheduler. Nothing runs until Start.
func NewScheduler(s sweeper, cfg Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: s,
		cfg:     cfg,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// Start registers the sweeps and starts the cron loop. ctx is passed to every sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	if s.cfg.RetryFailedCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.RetryFailedCron, s.sweepFunc("retry_failed", s.sweeper.RetryAllFailed)); err != nil {
			return fmt.Errorf("schedule retry_failed: %w", err)
		}
	}
	if s.cfg.ReclaimCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReclaimCron, s.sweepFunc("reclaim_stale", s.sweeper.ReclaimStale)); err != nil {
			return fmt.Errorf("schedule reclaim_stale: %w", err)
		}
	}

	if s.cfg.RequeuePendingOnStart {
		s.sweepFunc("requeue_pending", s.sweeper.RequeuePending)()
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits up to timeout for a running sweep.
func (s *Scheduler) Stop(timeout time.Duration) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		s.logger.Warn("Sweep still running at shutdown")
	}
}

func (s *Scheduler) sweepFunc(name string, fn func(context.Context) (int, error)) func() {
	return func() {
		start := time.Now()
		n, err := fn(s.ctx)
		if err != nil {
			s.logger.Error("Sweep failed", zap.String("sweep", name), zap.Error(err))
			return
		}
		s.logger.Debug("Sweep completed",
			zap.String("sweep", name),
			zap.Int("enqueued", n),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
