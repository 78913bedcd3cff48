package taskpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UrgentSlots is the concurrency of the urgent lane
const UrgentSlots = 2

// Pool runs detached background tasks with bounded concurrency.
// Urgent tasks have their own slots, so bulk work never delays them.
// Task errors and panics are logged and never reach the caller.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	urgent chan struct{}
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	pending int
}

// New creates a pool that runs at most concurrency tasks at once
func New(concurrency int, logger *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, concurrency),
		urgent: make(chan struct{}, UrgentSlots),
		logger: logger,
	}
}

// Go schedules fn. It never blocks the caller; the task waits for a free
// slot on its own goroutine. Returns false once the pool is closed.
func (p *Pool) Go(name string, fn func(ctx context.Context) error) bool {
	return p.schedule(name, p.sem, fn)
}

// GoUrgent schedules fn on the urgent lane
func (p *Pool) GoUrgent(name string, fn func(ctx context.Context) error) bool {
	return p.schedule(name, p.urgent, fn)
}

func (p *Pool) schedule(name string, slots chan struct{}, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug("task dropped, pool closed", zap.String("task", name))
		return false
	}
	p.wg.Add(1)
	p.pending++
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.done()

		select {
		case slots <- struct{}{}:
		case <-p.ctx.Done():
			return
		}
		defer func() { <-slots }()

		p.run(name, fn)
	}()
	return true
}

func (p *Pool) run(name string, fn func(ctx context.Context) error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.String("task", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := fn(p.ctx); err != nil {
		p.logger.Warn("task failed",
			zap.String("task", name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	p.logger.Debug("task finished",
		zap.String("task", name),
		zap.Duration("took", time.Since(start)))
}

func (p *Pool) done() {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()
}

// Pending returns the number of scheduled or running tasks
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Wait blocks until every scheduled task has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting tasks, cancels the context handed to running ones
// and waits for them to return. Tasks still waiting for a slot are skipped.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("task pool already closed")
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return nil
}
