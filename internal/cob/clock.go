package cob

import "sync/atomic"

// Clock issues action timestamps in unix milliseconds.
//
// Every value returned by Tick is at least the wall-clock reading passed
// in, strictly greater than the floor (the largest parent timestamp), and
// strictly greater than every value returned before. A causally later
// action therefore always carries a larger timestamp than its parents, even
// when wall clocks drift between replicas.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	last atomic.Int64
}

// NewClock creates a clock that has issued nothing yet.
func NewClock() *Clock {
	return &Clock{}
}

// Tick returns the next timestamp given the wall-clock reading now and the
// largest parent timestamp floor.
func (c *Clock) Tick(now, floor int64) int64 {
	for {
		last := c.last.Load()
		ts := max(now, floor+1, last+1)
		if c.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}

// Observe advances the clock past a timestamp seen on a received action.
func (c *Clock) Observe(ts int64) {
	for {
		last := c.last.Load()
		if ts <= last || c.last.CompareAndSwap(last, ts) {
			return
		}
	}
}

// Current returns the last issued or observed timestamp.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
