package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler triggers pipeline runs at a fixed interval.
type Scheduler struct {
	interval time.Duration
	log      *slog.Logger
	run      func(context.Context)
}

// New creates a scheduler.
func New(interval time.Duration, log *slog.Logger, run func(context.Context)) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{interval: interval, log: log, run: run}
}

// Run starts the loop. It fires once immediately, then on every tick,
// and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval)
	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}
