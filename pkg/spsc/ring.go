// Package spsc provides a bounded lock-free single-producer/single-consumer queue.
package spsc

import "sync/atomic"

// Ring is a fixed capacity FIFO shared between exactly one producer and
// one consumer. The producer only calls Push, the consumer only calls Pop,
// so no lock is required. Storage is allocated once in New and never resized.
type Ring[T any] struct {
	buf  []T
	size uint64

	// head is owned by the consumer, tail by the producer.
	head atomic.Uint64
	tail atomic.Uint64
}

// New creates a Ring holding up to capacity items.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("spsc: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity), size: uint64(capacity)}
}

// Push appends v. It returns false immediately if the ring is full.
func (r *Ring[T]) Push(v T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= r.size {
		return false
	}
	r.buf[tail%r.size] = v
	r.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest item. ok is false if the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return
	}
	idx := head % r.size
	v, ok = r.buf[idx], true
	var zero T
	r.buf[idx] = zero
	r.head.Store(head + 1)
	return
}

// Len returns the number of queued items. It is exact only when called
// from the producer or consumer while the other side is idle.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return int(r.size)
}
