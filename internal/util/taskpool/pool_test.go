package taskpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := New(3, zap.NewNop())
	var count atomic.Int32

	for i := 0; i < 20; i++ {
		p.Go("count", func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}
	p.Wait()

	if got := count.Load(); got != 20 {
		t.Errorf("count = %d, want 20", got)
	}
	if got := p.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const limit = 2
	p := New(limit, zap.NewNop())

	var running, peak atomic.Int32
	for i := 0; i < 10; i++ {
		p.Go("slow", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	p.Wait()

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
}

func TestPool_ErrorsAndPanicsAreContained(t *testing.T) {
	p := New(1, zap.NewNop())
	var after atomic.Bool

	p.Go("fails", func(ctx context.Context) error {
		return errors.New("boom")
	})
	p.Go("panics", func(ctx context.Context) error {
		panic("unexpected")
	})
	p.Go("after", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	p.Wait()

	if !after.Load() {
		t.Error("task after a panic did not run")
	}
}

func TestPool_Close(t *testing.T) {
	p := New(1, zap.NewNop())
	started := make(chan struct{})
	var cancelled atomic.Bool

	p.Go("blocking", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	<-started

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !cancelled.Load() {
		t.Error("running task did not observe cancellation")
	}
	if p.Go("late", func(ctx context.Context) error { return nil }) {
		t.Error("Go() after Close() = true, want false")
	}
	if err := p.Close(); err == nil {
		t.Error("second Close() error = nil, want error")
	}
}

func TestPool_UrgentLaneIsNotStarved(t *testing.T) {
	p := New(1, zap.NewNop())
	defer p.Close()

	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		p.Go("bulk", func(ctx context.Context) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		})
	}

	done := make(chan struct{})
	if !p.GoUrgent("urgent", func(ctx context.Context) error {
		close(done)
		return nil
	}) {
		t.Fatal("GoUrgent() = false, want true")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("urgent task waited for the bulk lane")
	}
	close(release)
	p.Wait()
}

func TestPool_UrgentLaneIsBounded(t *testing.T) {
	p := New(1, zap.NewNop())
	var running, peak atomic.Int32

	for i := 0; i < 8; i++ {
		p.GoUrgent("urgent", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	p.Wait()

	if got := peak.Load(); got > UrgentSlots {
		t.Errorf("peak concurrency = %d, want <= %d", got, UrgentSlots)
	}
}
