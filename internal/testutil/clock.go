package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a fake wall clock for tests. Each call to Now
// advances it by one millisecond, so every action a test creates gets a
// distinct, predictable timestamp.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	ticks int64
}

// Epoch is the first instant returned by a new DeterministicClock.
var Epoch = time.UnixMilli(1_700_000_000_000).UTC()

// NewDeterministicClock creates a clock whose first Now() returns Epoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{start: Epoch}
}

// Now returns the current instant and advances the clock.
// Its signature matches issues.WithNow.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * time.Millisecond)
	c.ticks++
	return t
}

// Current returns the instant the next Now() will return, without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.ticks) * time.Millisecond)
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
