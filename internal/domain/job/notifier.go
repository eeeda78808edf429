// Package job holds the in-process plumbing around the durable job queue.
package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaiterRequired is returned by NewNotifier when no Waiter is given.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until the store reports newly enqueued items or ctx ends.
type Waiter interface {
	WaitForNotification(ctx context.Context) error
}

// Notifier turns store wake-ups into per-subscriber signals.
// The dispatcher uses it to claim work right after an enqueue instead of waiting for its next poll.
type Notifier interface {
	Subscribe() (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configures NewNotifier.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds one wait; subscribers are signalled when it lapses too. Default 1m.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait. Default 250ms.
	Backoff time.Duration
}

// DefaultNotifier shares one listener goroutine among all subscribers.
// The listener starts with the first subscriber and stops with the last.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu         sync.Mutex
	subs       map[chan struct{}]struct{}
	stopListen context.CancelFunc
}

var _ Notifier = (*DefaultNotifier)(nil)

// NewNotifier returns a notifier that listens through opts.Waiter while at least one
// subscriber exists. WaitWindow defaults to a minute and Backoff to 250ms.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		subs:       map[chan struct{}]struct{}{},
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe registers a receiver. The channel holds at most one pending signal,
// so a burst of enqueues collapses into one wake-up. The returned func is idempotent.
func (n *DefaultNotifier) Subscribe() (func(), <-chan struct{}) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	if n.stopListen == nil {
		ctx, cancel := context.WithCancel(context.Background())
		n.stopListen = cancel
		go n.listen(ctx)
	}
	n.mu.Unlock()

	return func() { n.unsubscribe(ch) }, ch
}

func (n *DefaultNotifier) unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[ch]; !ok {
		return
	}
	delete(n.subs, ch)
	closeDrained(ch)
	if len(n.subs) == 0 {
		n.haltLocked()
	}
}

// StopAll stops the listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.haltLocked()
	for ch := range n.subs {
		closeDrained(ch)
	}
	clear(n.subs)
}

func (n *DefaultNotifier) haltLocked() {
	if n.stopListen != nil {
		n.stopListen()
		n.stopListen = nil
	}
}

func (n *DefaultNotifier) listen(ctx context.Context) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx)
		cancel()

		n.signal()

		failed := err != nil && !errors.Is(err, context.DeadlineExceeded)
		if failed && !sleepCtx(ctx, n.backoff) {
			return
		}
	}
}

func (n *DefaultNotifier) signal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// closeDrained empties ch before closing it, so receivers see the close on their next read.
func closeDrained(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
	close(ch)
}
