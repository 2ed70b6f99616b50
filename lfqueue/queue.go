// Package lfqueue implements the Michael–Scott lock-free MPMC queue and
// its two-phase-publish channel variant, both backed by a mempool.Pool so
// node addresses stay stable across the CAS races that swing head and
// tail (spec.md §4.2).
package lfqueue

import (
	"sync/atomic"

	"github.com/arvode/taskkernel/internal/kerrors"
	"github.com/arvode/taskkernel/mempool"
)

// DefaultCapacity matches spec.md §6's documented default.
const DefaultCapacity = 1024

// node is a queue link. Its address is stable for the lifetime of the
// pool slot it occupies; reclamation only returns a node to the pool
// after the CAS that unlinked it from head has linearized, so no two
// reclaimers ever free the same node (spec.md §4.2's reclamation note).
type node[T any] struct {
	next atomic.Pointer[node[T]]
	data T
}

// Queue is a bounded, lock-free, multi-producer multi-consumer FIFO.
//
// It maintains a sentinel node at head so enqueue and dequeue never alias
// (spec.md §3's Node entity). size is an atomic approximation bounded by
// [0, capacity] except transiently during CAS races (invariant I2).
type Queue[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	size     atomic.Int64
	capacity int64
	pool     *mempool.Pool[node[T]]
}

// New creates a Queue with the given bounded capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue[T]{
		capacity: int64(capacity),
		pool:     mempool.New[node[T]](64),
	}
	dummy := q.pool.Allocate()
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// TryEnqueue appends v without blocking. It fails with
// kerrors.ErrQueueFull once size has reached capacity, without any side
// effects (invariant I4).
func (q *Queue[T]) TryEnqueue(v T) error {
	if q.size.Load() >= q.capacity {
		return kerrors.ErrQueueFull
	}

	n := q.pool.Allocate(func(nd *node[T]) { nd.data = v })

	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				q.size.Add(1)
				return nil
			}
			continue
		}
		// Tail lagging behind the real last node — help advance it.
		q.tail.CompareAndSwap(tail, next)
	}
}

// TryDequeue removes and returns the oldest value without blocking. It
// returns kerrors.ErrQueueEmpty if the queue has no ready value.
func (q *Queue[T]) TryDequeue() (T, error) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()

		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				var zero T
				return zero, kerrors.ErrQueueEmpty
			}
			// Tail lagging — help advance it, then retry.
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		v := next.data
		if q.head.CompareAndSwap(head, next) {
			q.pool.Deallocate(head)
			q.size.Add(-1)
			return v, nil
		}
	}
}

// Len returns the approximate current size.
func (q *Queue[T]) Len() int64 {
	return q.size.Load()
}

// Capacity returns the bounded capacity configured at construction.
func (q *Queue[T]) Capacity() int64 {
	return q.capacity
}

// Empty reports whether the queue currently holds no values.
func (q *Queue[T]) Empty() bool {
	return q.Len() <= 0
}
