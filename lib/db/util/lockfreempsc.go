// Package util provides a lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// The store pushes one event per write that changes the expiry of a key, the
// sweeper goroutine is the single consumer. Writers never block on the
// sweeper, no matter how far behind it is.
//
// Features and Guarantees:
//
//   - Wait-free Push: one atomic swap per item, any number of producers
//   - Unbounded Size: limited only by available memory
//   - Batched consumption: the consumer waits on Ready and takes everything
//     queued so far with Drain
//   - Per producer FIFO: items of one goroutine arrive in push order, items
//     of different goroutines interleave in the order their swaps happened
package util

import (
	"sync/atomic"
)

// node is one queued item
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is an intrusive linked list queue. Producers append by
// swapping the tail pointer, the consumer walks from a sentinel head.
type LockFreeMPSC[T any] struct {
	tail   atomic.Pointer[node[T]]
	head   *node[T] // owned by the consumer
	ready  chan struct{}
	closed atomic.Bool
}

// NewLockFreeMPSC creates an empty queue
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &node[T]{}
	q := &LockFreeMPSC[T]{
		head:  sentinel,
		ready: make(chan struct{}, 1),
	}
	q.tail.Store(sentinel)
	return q
}

// Push appends value to the queue and returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and never blocks.
func (q *LockFreeMPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	// between the swap and the link the item is invisible to the consumer,
	// the signal below is only sent once it is linked
	prev := q.tail.Swap(n)
	prev.next.Store(n)

	q.signal()
	return true
}

// Ready receives a value whenever items were pushed since the last receive,
// and once more after Close.
func (q *LockFreeMPSC[T]) Ready() <-chan struct{} {
	return q.ready
}

// Drain hands every linked item to fn in queue order and returns how many
// there were. Items pushed while Drain runs may or may not be included, if
// not, Ready fires again for them.
//
// Thread-safety: Only the single consumer may call Drain.
func (q *LockFreeMPSC[T]) Drain(fn func(T)) int {
	n := 0
	for {
		next := q.head.next.Load()
		if next == nil {
			return n
		}
		fn(next.value)
		var zero T
		next.value = zero // release the item, next becomes the sentinel
		q.head = next
		n++
	}
}

// Close rejects further pushes. Items queued before Close can still be drained.
func (q *LockFreeMPSC[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		q.signal()
	}
}

// IsClosed reports whether Close was called
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// signal wakes the consumer without blocking. One pending signal is enough,
// the consumer drains everything it finds.
func (q *LockFreeMPSC[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
