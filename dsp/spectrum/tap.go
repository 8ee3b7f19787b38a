package spectrum

import (
	"math"
	"sync/atomic"
)

// Tap is a single-producer single-consumer sample ring. The audio goroutine
// calls Write; the analysis goroutine calls Snapshot. Neither side blocks or
// allocates.
//
// Slots are individual atomic words, so a Snapshot taken while Write runs
// may mix samples from adjacent blocks but never observes a torn value.
type Tap struct {
	slots []atomic.Uint64
	mask  uint64
	write atomic.Uint64 // total samples written
}

// NewTap returns a tap holding at least capacity samples.
func NewTap(capacity int) *Tap {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Tap{slots: make([]atomic.Uint64, n), mask: uint64(n - 1)}
}

// Cap returns the ring size.
func (t *Tap) Cap() int { return len(t.slots) }

// Written returns the total number of samples written so far.
func (t *Tap) Written() uint64 { return t.write.Load() }

// Write appends block to the ring.
func (t *Tap) Write(block []float64) {
	w := t.write.Load()
	for _, s := range block {
		t.slots[w&t.mask].Store(math.Float64bits(s))
		w++
	}
	t.write.Store(w)
}

// Snapshot copies the most recent samples into dst, oldest first, and
// returns how many were available. When fewer than len(dst) samples have
// been written, only the tail of dst is filled and the head is zeroed.
func (t *Tap) Snapshot(dst []float64) int {
	n := len(dst)
	if n > len(t.slots) {
		n = len(t.slots)
		clear(dst[:len(dst)-n])
		dst = dst[len(dst)-n:]
	}

	end := t.write.Load()
	avail := n
	if end < uint64(n) {
		avail = int(end)
	}

	pad := n - avail
	clear(dst[:pad])
	start := end - uint64(avail)
	for i := 0; i < avail; i++ {
		dst[pad+i] = math.Float64frombits(t.slots[(start+uint64(i))&t.mask].Load())
	}
	return avail
}

// Reset forgets all samples. It must not run concurrently with Write.
func (t *Tap) Reset() {
	for i := range t.slots {
		t.slots[i].Store(0)
	}
	t.write.Store(0)
}
