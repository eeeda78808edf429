// Package ratelimit implements the fixed-window admission control applied to every API entry point.
//
// A bucket holds a remaining count and a reset time. The first request for a key, or the first request
// after the reset time has passed, refills the bucket to capacity and starts a new window.
// Requests are admitted while remaining > 0.
package ratelimit

import (
	"context"
	"time"
)

// Defaults used when a limiter is built without explicit values.
const (
	DefaultCapacity = 60
	DefaultWindow   = 60 * time.Second
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or denies one request for key.
type Limiter interface {
	Admit(ctx context.Context, key string) Decision
}

// Options configures a limiter.
type Options struct {
	Capacity int
	Window   time.Duration
	// Clock is injectable so tests can use pseudo-time.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
