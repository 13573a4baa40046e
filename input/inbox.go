package input

import (
	"sync/atomic"
)

// Inbox is a lock-free MPSC ring buffer for messages arriving from network goroutines
// Thread-Safety:
//   - Push: Lock-free CAS, multiple producers OK
//   - Drain: Single consumer (the simulation's safe point)
//   - Published flags prevent reading partial writes
//
// Overflow: Push fails when full; authoritative input is never overwritten
type Inbox[T any] struct {
	items     []T
	published []atomic.Bool // True = slot fully written
	mask      uint64
	head      atomic.Uint64 // Read index, written by the consumer only
	tail      atomic.Uint64 // Write index
}

// NewInbox creates an inbox holding at least size items, rounded up to a power of two
func NewInbox[T any](size int) *Inbox[T] {
	n := uint64(1)
	for n < uint64(size) {
		n <<= 1
	}
	return &Inbox[T]{
		items:     make([]T, n),
		published: make([]atomic.Bool, n),
		mask:      n - 1,
	}
}

func (q *Inbox[T]) Capacity() int {
	return len(q.items)
}

// Len returns the number of reserved slots, including ones still being written
func (q *Inbox[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Push reserves a slot with CAS and publishes v. Returns false when full
func (q *Inbox[T]) Push(v T) bool {
	size := uint64(len(q.items))
	for {
		tail := q.tail.Load()
		if tail-q.head.Load() >= size {
			return false
		}
		if q.tail.CompareAndSwap(tail, tail+1) {
			idx := tail & q.mask
			q.items[idx] = v
			q.published[idx].Store(true) // MUST be after write
			return true
		}
	}
}

// Drain passes every published item to fn in FIFO order and returns the count
// Stops early at a slot whose producer has not finished writing
func (q *Inbox[T]) Drain(fn func(T)) int {
	var zero T
	head := q.head.Load()
	tail := q.tail.Load()
	n := 0
	for ; head < tail; head++ {
		idx := head & q.mask
		if !q.published[idx].Load() {
			break // Writer incomplete
		}
		v := q.items[idx]
		q.items[idx] = zero
		q.published[idx].Store(false)
		q.head.Store(head + 1)
		fn(v)
		n++
	}
	return n
}
