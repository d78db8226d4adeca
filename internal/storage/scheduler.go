package storage

import (
	"context"
	"log/slog"
	"time"
)

// SweepScheduler runs a Sweeper immediately and then at a fixed interval
// until its context is cancelled.
type SweepScheduler struct {
	Sweeper *Sweeper
	// Interval is the time between sweeps. If <= 0 only the initial sweep
	// runs, and Run then waits for cancellation.
	Interval time.Duration
	// Logger receives one record per sweep. If nil, slog.Default is used.
	Logger *slog.Logger

	// NewTicker creates a ticker channel and its stop function. If nil,
	// time.NewTicker is used.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// Run blocks until ctx is done. Sweep errors are logged and otherwise
// ignored.
func (s *SweepScheduler) Run(ctx context.Context) {
	s.runOnce()

	if s.Interval <= 0 {
		<-ctx.Done()
		return
	}

	newTicker := s.NewTicker
	if newTicker == nil {
		newTicker = defaultNewTicker
	}

	ch, stop := newTicker(s.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.runOnce()
		}
	}
}

func (s *SweepScheduler) runOnce() {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report, err := s.Sweeper.Sweep()
	if err != nil {
		logger.Warn("workspace sweep failed", "root", s.Sweeper.Root, "error", err)
		return
	}
	if len(report.Removed) > 0 {
		logger.Info("removed stale workspaces", "root", s.Sweeper.Root, "removed", report.Removed)
	}
	logger.Debug("workspace sweep complete", "removed", len(report.Removed), "skipped", len(report.Skipped))
}

func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
