package utils

import (
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// TickBuffer is a fixed-size circular buffer of price ticks for one
// instrument. True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type TickBuffer struct {
	data     []models.MStockTick
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewTickBuffer creates a new buffer with fixed capacity
func NewTickBuffer(capacity int) *TickBuffer {
	if capacity <= 0 {
		capacity = 400 // Roughly one trading day at 15s ticks
	}

	return &TickBuffer{
		data:     make([]models.MStockTick, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds one tick, overwriting the oldest entry when full.
func (tb *TickBuffer) Append(tick models.MStockTick) {
	tb.data[tb.index] = tick
	tb.index = (tb.index + 1) % tb.capacity

	// Size never exceeds capacity
	if tb.size < tb.capacity {
		tb.size++
	}
}

// -----------------------------------------------------------------------------

// Latest returns up to n most recent ticks, oldest first.
func (tb *TickBuffer) Latest(n int) []models.MStockTick {
	if tb.size == 0 || n <= 0 {
		return nil
	}
	if n > tb.size {
		n = tb.size
	}

	out := make([]models.MStockTick, 0, n)
	start := (tb.index - n + tb.capacity) % tb.capacity
	for i := 0; i < n; i++ {
		out = append(out, tb.data[(start+i)%tb.capacity])
	}
	return out
}

// -----------------------------------------------------------------------------

// Last returns the most recent tick, if any.
func (tb *TickBuffer) Last() (models.MStockTick, bool) {
	if tb.size == 0 {
		return models.MStockTick{}, false
	}
	return tb.data[(tb.index-1+tb.capacity)%tb.capacity], true
}

// -----------------------------------------------------------------------------

// Size returns the current number of buffered ticks.
func (tb *TickBuffer) Size() int {
	return tb.size
}
