// Package sweep runs the decision expiry sweep on a fixed interval.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper resolves decisions whose deadline has passed.
type Sweeper interface {
	CheckExpiredDecisions(ctx context.Context, now time.Time) (int, error)
}

// Scheduler calls a Sweeper periodically.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that sweeps every interval.
func NewScheduler(s Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  s,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start runs one sweep immediately, then one on each tick, until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of decisions it
// resolved. Errors are logged.
func (s *Scheduler) SweepOnce(ctx context.Context) int {
	n, err := s.sweeper.CheckExpiredDecisions(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("expiry sweep failed", "resolved", n, "err", err)
		}
		return n
	}
	if n > 0 {
		s.logger.Info("expiry sweep resolved decisions", "resolved", n)
	} else {
		s.logger.Debug("expiry sweep found nothing due")
	}
	return n
}
