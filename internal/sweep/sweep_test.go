package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSweeper struct {
	calls atomic.Int64
	mu    sync.Mutex
	seen  []time.Time
	n     int
	err   error
}

func (f *fakeSweeper) CheckExpiredDecisions(_ context.Context, now time.Time) (int, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, now)
	return f.n, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	f := &fakeSweeper{n: 1}
	sched := NewScheduler(f, 50*time.Millisecond, discardLogger())
	sched.Start()

	// Initial sweep plus at least one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	calls := f.calls.Load()
	if calls < 2 {
		t.Fatalf("expected at least 2 sweeps, got %d", calls)
	}

	time.Sleep(80 * time.Millisecond)
	if after := f.calls.Load(); after != calls {
		t.Fatalf("sweeps continued after Stop: %d -> %d", calls, after)
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	NewScheduler(&fakeSweeper{}, time.Minute, discardLogger()).Stop()
}

func TestSweepOnce(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeSweeper{n: 3}
	sched := NewScheduler(f, time.Minute, discardLogger())
	sched.now = func() time.Time { return fixed }

	if n := sched.SweepOnce(context.Background()); n != 3 {
		t.Fatalf("SweepOnce = %d, want 3", n)
	}
	if len(f.seen) != 1 || !f.seen[0].Equal(fixed) {
		t.Fatalf("sweeper saw %v, want %v", f.seen, fixed)
	}
}

func TestSweepOnce_ErrorIsNotFatal(t *testing.T) {
	f := &fakeSweeper{err: errors.New("database is locked")}
	sched := NewScheduler(f, 20*time.Millisecond, discardLogger())
	sched.Start()
	time.Sleep(70 * time.Millisecond)
	sched.Stop()

	if f.calls.Load() < 2 {
		t.Fatalf("scheduler stopped sweeping after an error: %d calls", f.calls.Load())
	}
}
