package ratelimiter

import (
	"sync"
	"time"
)

// Limiter spaces an action to at most once per interval. Requests made while
// limited are kept and released by a later Ready call, so a trigger is never
// lost, only delayed and coalesced with the ones after it.
// Callers pass the clock in; the zero Limiter allows everything.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	pending     bool
}

// New creates a limiter allowing one action per interval
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
	}
}

// Allow reports whether an action may run at now and, if so, records it.
// When limited it returns the remaining wait.
func (l *Limiter) Allow(now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowLocked(now)
}

func (l *Limiter) allowLocked(now time.Time) (bool, time.Duration) {
	if l.lastAllowed.IsZero() {
		l.lastAllowed = now
		return true, 0
	}
	since := now.Sub(l.lastAllowed)
	if since >= l.interval {
		l.lastAllowed = now
		return true, 0
	}
	return false, l.interval - since
}

// Request marks an action as wanted. Repeated requests coalesce.
func (l *Limiter) Request() {
	l.mu.Lock()
	l.pending = true
	l.mu.Unlock()
}

// Pending reports whether a request is waiting
func (l *Limiter) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Ready consumes the pending request if the interval allows it at now
func (l *Limiter) Ready(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending {
		return false
	}
	if ok, _ := l.allowLocked(now); !ok {
		return false
	}
	l.pending = false
	return true
}

// Reset forgets the last allowed time and any pending request
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastAllowed = time.Time{}
	l.pending = false
	l.mu.Unlock()
}

// Interval returns the configured spacing
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
