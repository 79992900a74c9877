package testutil

import "sync"

// ManualClock is a test clock for caller-supplied settlement times.
//
// The engine never reads time itself; tests and scenarios use a
// ManualClock to produce the At values they pass in.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock creates a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current time without advancing.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
//
// Panics if the clock would wrap past MaxUint64.
func (c *ManualClock) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now+d < c.now {
		panic("ManualClock: advance overflows uint64")
	}
	c.now += d
	return c.now
}

// Set moves the clock to t. Unlike Advance it may go backwards, which
// lets tests provoke clock regression.
func (c *ManualClock) Set(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
