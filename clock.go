package goProfile

import (
	"sync/atomic"
	"time"
)

// Clock supplies millisecond timestamps. Implementations must be safe for
// concurrent use and should never go backwards.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the wall clock, clamped so it never goes backwards
// within the process.
type SystemClock struct {
	last atomic.Int64
}

// NowMillis returns the current Unix time in milliseconds.
func (c *SystemClock) NowMillis() int64 {
	now := time.Now().UnixMilli()
	for {
		prev := c.last.Load()
		if now <= prev {
			return prev
		}
		if c.last.CompareAndSwap(prev, now) {
			return now
		}
	}
}

// ClockFunc adapts a function to [Clock].
type ClockFunc func() int64

// NowMillis calls f.
func (f ClockFunc) NowMillis() int64 {
	return f()
}
