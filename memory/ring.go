package memory

import "sync/atomic"

// Ring is an SPSC ring for handing retired objects from a mutator to a
// reclaimer goroutine. One producer, one consumer; head and tail live on
// separate cache lines.
type Ring[T any] struct {
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte

	buf  []*T
	mask uint64
}

// NewRing allocates a fixed-size circular buffer (power-of-2 length).
func NewRing[T any](pow2 uint64) *Ring[T] {
	if pow2 == 0 || pow2&(pow2-1) != 0 {
		panic("memory: ring capacity must be a power of two")
	}
	return &Ring[T]{buf: make([]*T, pow2), mask: pow2 - 1}
}

// Enqueue pushes p into the ring. Producer side only.
// Returns false if the buffer is full.
func (q *Ring[T]) Enqueue(p *T) bool {
	h := q.head.Load()
	t := q.tail.Load()
	if h-t == uint64(len(q.buf)) {
		return false // full
	}
	q.buf[h&q.mask] = p
	q.head.Store(h + 1)
	return true
}

// Dequeue pops the next object from the ring. Consumer side only.
// Returns nil if the buffer is empty.
func (q *Ring[T]) Dequeue() *T {
	t := q.tail.Load()
	h := q.head.Load()
	if t == h {
		return nil
	}
	p := q.buf[t&q.mask]
	q.buf[t&q.mask] = nil
	q.tail.Store(t + 1)
	return p
}

// ---------------- Diagnostics ---------------- //

// Len returns the number of objects currently stored.
func (q *Ring[T]) Len() int {
	h := q.head.Load()
	t := q.tail.Load()
	return int(h - t)
}

// Cap returns the total capacity of the ring.
func (q *Ring[T]) Cap() int {
	return len(q.buf)
}

// IsEmpty reports whether the ring is empty.
func (q *Ring[T]) IsEmpty() bool {
	return q.head.Load() == q.tail.Load()
}

// IsFull reports whether the ring is full.
func (q *Ring[T]) IsFull() bool {
	return q.Len() == len(q.buf)
}
