// Package reactor is a single-threaded event loop. Timer callbacks, posted
// callbacks and the async handler all run on the goroutine that called Run,
// one at a time, so the code they call needs no locking.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Timer is a one-shot timer armed on a Loop.
type Timer interface {
	// Cancel disarms the timer and reports whether it was still armed.
	// Must be called from loop context.
	Cancel() bool
}

// Loop dispatches callbacks on a single goroutine.
type Loop struct {
	clock Clock

	mu     sync.Mutex
	queue  []func()
	notify chan struct{}

	wake    atomic.Bool
	async   func()
	stopped atomic.Bool
}

// New creates a Loop reading time from clock. A nil clock means SystemClock.
func New(clock Clock) *Loop {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Loop{
		clock:  clock,
		notify: make(chan struct{}, 1),
	}
}

// Now returns the loop's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post queues fn to run on the loop. Safe from any goroutine; never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.poke()
}

// SetAsyncHandler registers the callback run after a Wakeup. Call before Run.
func (l *Loop) SetAsyncHandler(fn func()) {
	l.async = fn
}

// Wakeup requests one invocation of the async handler on a later turn.
// Safe from any goroutine; never blocks; repeated requests coalesce.
func (l *Loop) Wakeup() {
	l.wake.Store(true)
	l.poke()
}

// Stop ends the loop. No callback is dispatched after Stop returns, even if
// it was already queued.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.poke()
}

func (l *Loop) poke() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Run dispatches callbacks until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if done := l.turn(); done {
			return nil
		}
		select {
		case <-l.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// turn runs everything queued so far, then the async handler if a wakeup
// is pending. It reports whether the loop has been stopped.
func (l *Loop) turn() bool {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		if l.stopped.Load() {
			return true
		}
		fn()
	}
	if l.stopped.Load() {
		return true
	}
	if l.wake.Swap(false) && l.async != nil {
		l.async()
	}
	return l.stopped.Load()
}
