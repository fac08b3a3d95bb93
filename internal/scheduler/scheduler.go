package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the compliance sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweep   *ComplianceSweep
	timeout time.Duration
	logger  *slog.Logger
	count   atomic.Int64
}

// NewScheduler creates a scheduler. Overlapping runs are skipped.
func NewScheduler(sweep *ComplianceSweep, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweep:   sweep,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the sweep and starts the cron scheduler.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("compliance scheduler started", "schedule", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("compliance scheduler stopped")
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.sweep.Run(ctx)
	s.count.Add(1)
	if err != nil {
		s.logger.Error("compliance sweep failed", "error", err)
		return
	}
	s.logger.Info("compliance sweep finished",
		"organizations", res.Organizations,
		"revoked", res.Revoked,
		"rejected", res.Rejected,
		"duration", time.Since(start),
	)
}

func (s *Scheduler) runs() int64 {
	return s.count.Load()
}
