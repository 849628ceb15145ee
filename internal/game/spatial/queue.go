// Package spatial provides the cache-friendly data structures backing the
// movement core: the lock-free MPSC ring that transports commands onto
// the simulation goroutine, and the uniform grid used for snapshot
// neighbour queries.
//
// Both structures use preallocated slices with integer indices (not
// pointers) to minimize GC pressure and maximize cache locality.
package spatial

import (
	"sync/atomic"
)

// CacheLineSize is the typical CPU cache line size (64 bytes on x86-64).
const CacheLineSize = 64

type pad [CacheLineSize]byte

// MPSCRing is a bounded multi-producer single-consumer ring buffer
// (Vyukov style). Producers claim slots with a CAS on the head counter
// and publish through per-slot sequence numbers; the single consumer
// drains in FIFO order at tick boundaries.
//
// Head, tail and the slot array live on separate cache lines to prevent
// false sharing between producers and the consumer.
type MPSCRing[T any] struct {
	_    pad
	head atomic.Uint64 // next slot to claim (producers)
	_    pad
	tail uint64 // next slot to read (consumer only)
	_    pad
	mask  uint64
	slots []slot[T]
}

type slot[T any] struct {
	seq  atomic.Uint64
	item T
}

// NewMPSCRing creates a ring of at least the given capacity, rounded up
// to a power of two.
func NewMPSCRing[T any](capacity int) *MPSCRing[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	r := &MPSCRing[T]{
		mask:  uint64(size - 1),
		slots: make([]slot[T], size),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// TryPush enqueues an item. Returns false when the ring is full; callers
// decide whether a dropped command is acceptable (it is logged and
// counted upstream).
func (r *MPSCRing[T]) TryPush(item T) bool {
	for {
		head := r.head.Load()
		s := &r.slots[head&r.mask]
		seq := s.seq.Load()
		switch {
		case seq == head:
			if r.head.CompareAndSwap(head, head+1) {
				s.item = item
				s.seq.Store(head + 1)
				return true
			}
		case seq < head:
			return false // full: the consumer has not freed this slot yet
		}
		// seq > head: another producer advanced past us; retry.
	}
}

// TryPop dequeues the oldest item. Single consumer only.
func (r *MPSCRing[T]) TryPop() (T, bool) {
	var zero T
	s := &r.slots[r.tail&r.mask]
	seq := s.seq.Load()
	if seq != r.tail+1 {
		return zero, false // empty or the producer has not published yet
	}
	item := s.item
	s.item = zero
	s.seq.Store(r.tail + uint64(len(r.slots)))
	r.tail++
	return item, true
}

// Drain pops every available item into fn in FIFO order and returns the
// count. Single consumer only.
func (r *MPSCRing[T]) Drain(fn func(T)) int {
	n := 0
	for {
		item, ok := r.TryPop()
		if !ok {
			return n
		}
		fn(item)
		n++
	}
}

// Len approximates the number of queued items.
func (r *MPSCRing[T]) Len() int {
	return int(r.head.Load() - r.tail)
}
