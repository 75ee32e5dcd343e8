package counters

import "sync/atomic"

type counterName int

// stats
const (
	BytesRead counterName = iota
	BytesWritten
	Operations
	Errors
)

// Counters provides concurrent-safe access over set of integers.
type Counters [4]int64

func (c *Counters) Incr(name counterName, value int64) {
	atomic.AddInt64(&c[name], value)
}

func (c *Counters) Read(name counterName) int64 {
	return atomic.LoadInt64(&c[name])
}
