package middleware

import (
	"sync"
	"time"
)

// RateLimiter gates expensive calls per caller identity. The process-local
// implementation below does not hold across horizontally scaled instances;
// deployments with more than one instance should back this interface with a
// shared store.
type RateLimiter interface {
	Allow(caller string) bool
}

// WindowLimiter accepts at most one call per caller per fixed window. It
// bounds load on the upstream spreadsheet source, not request throughput in
// general.
type WindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewWindowLimiter builds a limiter with the given window per caller.
func NewWindowLimiter(window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether the caller's window has elapsed, recording the
// attempt when it has. Stale entries are pruned opportunistically.
func (l *WindowLimiter) Allow(caller string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[caller]; ok && now.Sub(last) < l.window {
		return false
	}
	l.last[caller] = now

	if len(l.last) > 1024 {
		for key, seen := range l.last {
			if now.Sub(seen) >= l.window {
				delete(l.last, key)
			}
		}
	}

	return true
}
