package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often expired buckets are dropped from the map.
const sweepEvery = 1024

type bucket struct {
	remaining int
	resetAt   time.Time
}

// FixedWindow is the in-memory limiter. State lives for the process lifetime.
type FixedWindow struct {
	mu      sync.Mutex
	opts    Options
	buckets map[string]*bucket
	admits  int
}

// NewFixedWindow creates an in-memory fixed-window limiter.
func NewFixedWindow(opts Options) *FixedWindow {
	return &FixedWindow{
		opts:    opts.withDefaults(),
		buckets: make(map[string]*bucket),
	}
}

// Admit implements Limiter. It never fails.
func (l *FixedWindow) Admit(_ context.Context, key string) Decision {
	allowed, remaining, resetAt := l.admit(key)
	return Decision{
		Allowed:   allowed,
		Limit:     l.opts.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

func (l *FixedWindow) admit(key string) (bool, int, time.Time) {
	now := l.opts.Clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.admits++
	if l.admits%sweepEvery == 0 {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{remaining: l.opts.Capacity, resetAt: now.Add(l.opts.Window)}
		l.buckets[key] = b
	}

	if b.remaining > 0 {
		b.remaining--
		return true, b.remaining, b.resetAt
	}
	return false, 0, b.resetAt
}

// sweep drops buckets whose window has passed; they would be reset on next use anyway.
func (l *FixedWindow) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
