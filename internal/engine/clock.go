package engine

import "sync/atomic"

// Clock hands out invocation sequence numbers.
//
// Every delegated invocation of an evaluation is stamped with the next
// value, so log lines from parallel workers can be ordered by the moment
// each call was issued rather than by wall-clock time.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
