package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Interval provides simple time-based pacing: one action per interval.
// Safe for concurrent use.
type Interval struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
}

// NewInterval creates a pacing limiter allowing one action per interval
func NewInterval(interval time.Duration) *Interval {
	return &Interval{interval: interval}
}

// Allow checks if an action is allowed now. Returns true if allowed (and
// records this as the last allowed time), or false with the remaining wait.
func (l *Interval) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	since := now.Sub(l.lastAllowed)

	if since >= l.interval {
		l.lastAllowed = now
		return true, 0
	}
	return false, l.interval - since
}

// Wait blocks until the next action is allowed or the context ends
func (l *Interval) Wait(ctx context.Context) error {
	for {
		ok, remaining := l.Allow()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remaining):
		}
	}
}

// Reset clears the limiter state, allowing the next action immediately
func (l *Interval) Reset() {
	l.mu.Lock()
	l.lastAllowed = time.Time{}
	l.mu.Unlock()
}

type windowCounter struct {
	count       int
	windowStart time.Time
}

// Window enforces a per-key quota of max actions per window. The counter for
// a key resets when its window elapses.
type Window struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	counters map[string]*windowCounter
	now      func() time.Time
}

// NewWindow creates a per-key windowed quota limiter
func NewWindow(max int, window time.Duration) *Window {
	return &Window{
		window:   window,
		max:      max,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

// Allow records one action for key and reports whether it is within quota.
// Expired counters are swept before new keys are admitted, so a stream of
// never-repeating keys cannot grow the map without bound.
func (w *Window) Allow(key string) bool {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.counters) > 1024 {
		w.cleanupLocked(now)
	}

	entry, ok := w.counters[key]
	if !ok || now.Sub(entry.windowStart) >= w.window {
		w.counters[key] = &windowCounter{count: 1, windowStart: now}
		return true
	}

	if entry.count >= w.max {
		return false
	}
	entry.count++
	return true
}

func (w *Window) cleanupLocked(now time.Time) {
	for key, entry := range w.counters {
		if now.Sub(entry.windowStart) >= w.window {
			delete(w.counters, key)
		}
	}
}
