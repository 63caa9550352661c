// Package snapshot provides Cell, an observable holder for one immutable
// value owned by a dashboard session.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

type entry[T any] struct {
	value     T
	updatedAt time.Time
}

// Option configures a Cell
type Option func(*options)

type options struct {
	clock clock.PassiveClock
}

// WithClock stamps UpdatedAt from clk instead of the real clock
func WithClock(clk clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// Cell holds the current value of type T. Reads never block and a Store is
// a single pointer swap, so readers see either the old or the new value.
type Cell[T any] struct {
	current atomic.Pointer[entry[T]]
	clock   clock.PassiveClock

	mu     sync.Mutex
	subs   map[uint64]chan T
	nextID uint64
	closed bool
}

// NewCell creates a cell holding initial. UpdatedAt stays zero until the
// first Store.
func NewCell[T any](initial T, opts ...Option) *Cell[T] {
	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cell[T]{
		clock: o.clock,
		subs:  make(map[uint64]chan T),
	}
	c.current.Store(&entry[T]{value: initial})
	return c
}

// Load returns the current value.
func (c *Cell[T]) Load() T {
	return c.current.Load().value
}

// UpdatedAt returns when the value was last stored, or the zero time if it
// still holds the initial value.
func (c *Cell[T]) UpdatedAt() time.Time {
	return c.current.Load().updatedAt
}

// Store replaces the value and notifies subscribers.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Swapping under mu keeps notification order equal to store order.
	c.current.Store(&entry[T]{value: v, updatedAt: c.clock.Now()})
	for _, ch := range c.subs {
		// Drop a stale queued value so the newest one always fits.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel receiving every stored value. A slow reader
// may miss intermediate values but the latest one is always delivered.
// The channel is closed by cancel or by Close, whichever comes first; cancel
// is safe to call more than once. Subscribing to a closed cell returns a
// closed channel.
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close ends every subscription. Load and Store keep working.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
