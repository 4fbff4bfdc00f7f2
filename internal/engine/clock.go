package engine

import "sync/atomic"

// Clock numbers drain passes.
//
// Every pass that actually runs gets a strictly increasing number, which
// ties log lines and reports of the same pass together.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next pass number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the number of the latest pass without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
