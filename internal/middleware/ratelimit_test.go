package middleware

import (
	"testing"
	"time"
)

func TestWindowLimiterAllowsOncePerWindow(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewWindowLimiter(time.Minute)
	limiter.now = func() time.Time { return current }

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first call should be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("second call inside the window should be denied")
	}

	current = current.Add(30 * time.Second)
	if limiter.Allow("10.0.0.1") {
		t.Fatal("call halfway through the window should be denied")
	}

	current = current.Add(31 * time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("call after the window should be allowed")
	}
}

func TestWindowLimiterTracksCallersIndependently(t *testing.T) {
	limiter := NewWindowLimiter(time.Minute)
	if !limiter.Allow("a") {
		t.Fatal("caller a should be allowed")
	}
	if !limiter.Allow("b") {
		t.Fatal("caller b should be allowed despite a's attempt")
	}
	if limiter.Allow("a") {
		t.Fatal("caller a should be denied inside its window")
	}
}

func TestWindowLimiterPrunesStaleEntries(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewWindowLimiter(time.Second)
	limiter.now = func() time.Time { return current }

	for i := 0; i < 1100; i++ {
		limiter.Allow(time.Duration(i).String())
	}
	current = current.Add(2 * time.Second)
	limiter.Allow("fresh")

	limiter.mu.Lock()
	size := len(limiter.last)
	limiter.mu.Unlock()
	if size > 2 {
		t.Errorf("limiter kept %d entries after pruning window", size)
	}
}
