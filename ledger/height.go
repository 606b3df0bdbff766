package ledger

import "sync"

// HeightSource reports the current ledger height. Time in this system is a
// monotonically increasing height counter, never wall-clock; cooldowns are
// height deltas and tests advance the counter explicitly.
type HeightSource interface {
	Height() uint64
}

// Counter is a manually advanced HeightSource.
type Counter struct {
	mu sync.Mutex
	h  uint64
}

// NewCounter returns a Counter starting at the given height.
func NewCounter(start uint64) *Counter {
	return &Counter{h: start}
}

func (c *Counter) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

// Advance moves the counter forward by n blocks.
func (c *Counter) Advance(n uint64) {
	c.mu.Lock()
	c.h += n
	c.mu.Unlock()
}
