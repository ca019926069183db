package scheduler

import (
	"context"
	"log/slog"
	"time"

	"bookmark_sync/internal/domain"
)

// Resumer re-enters interrupted sync attempts that are due.
type Resumer interface {
	ResumeDue(ctx context.Context) ([]domain.ResumeOutcome, error)
}

type Scheduler struct {
	resumer  Resumer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(resumer Resumer, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		resumer:  resumer,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("resume scheduler started", "interval", s.interval)

	s.runResume(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("resume scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runResume(ctx)
		}
	}
}

func (s *Scheduler) runResume(ctx context.Context) {
	resumeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcomes, err := s.resumer.ResumeDue(resumeCtx)
	if err != nil {
		s.logger.Error("resume pass failed", "error", err)
	}

	var failed, interrupted int
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Result != nil && o.Result.Status == domain.SyncStatusInterrupted:
			interrupted++
		}
	}
	if len(outcomes) > 0 {
		s.logger.Info("resume pass finished",
			"attempts", len(outcomes),
			"failed", failed,
			"interrupted_again", interrupted,
		)
	}
}
