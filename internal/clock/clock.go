// Package clock provides the wall clock used for progress timestamps and a
// logical sequence counter used to order messages.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock reports the current wall time. Production code uses System; tests use
// testutil.FakeClock so that timestamps and tick intervals are deterministic.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Millis returns c's current time in unix milliseconds.
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// Sequence is a monotonic logical counter. Every enqueued message is stamped
// with Next() so drain order can be reconstructed from logs.
//
// Safe for concurrent use.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence returns a counter whose first Next() is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the counter.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the counter without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
