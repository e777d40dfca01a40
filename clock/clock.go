// Package clock implements WorldClock, the monotonic tick counter that
// stamps every local mutation with a "last updated" value.
package clock

import "sync/atomic"

// Clock is a monotonic, non-wrapping counter. It never decreases and is safe
// for concurrent use, though in practice only the World's single control
// thread ever calls Read.
type Clock struct {
	n atomic.Uint64
}

// New returns a Clock starting at 0.
func New() *Clock {
	return &Clock{}
}

// Read returns the current value and advances the counter by one. The first
// call returns 0.
func (c *Clock) Read() uint64 {
	return c.n.Add(1) - 1
}

// Peek returns the current value without advancing it.
func (c *Clock) Peek() uint64 {
	return c.n.Load()
}
