package lfqueue

import (
	"sync/atomic"
	"time"

	"github.com/arvode/taskkernel/internal/kerrors"
	"github.com/arvode/taskkernel/mempool"
)

// chanNode adds the two-phase publish bit spec.md §4.2 point 4 and §9
// require: a producer links the node, then marks it committed, so a
// consumer that races past the link CAS before the value write is
// visible treats the node as not-yet-available rather than reading torn
// state.
type chanNode[T any] struct {
	next      atomic.Pointer[chanNode[T]]
	data      T
	committed atomic.Bool
}

// Channel is the timeout-aware sibling of Queue: same Michael–Scott
// backbone, but try_send/try_receive accept a duration and retry with a
// cooperative yield until it elapses, per spec.md §4.2's "Timeouts"
// paragraph. A zero duration is strictly non-blocking.
type Channel[T any] struct {
	head     atomic.Pointer[chanNode[T]]
	tail     atomic.Pointer[chanNode[T]]
	size     atomic.Int64
	capacity int64
	pool     *mempool.Pool[chanNode[T]]
}

// NewChannel creates a Channel with the given bounded capacity. A
// non-positive capacity falls back to DefaultCapacity.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Channel[T]{
		capacity: int64(capacity),
		pool:     mempool.New[chanNode[T]](64),
	}
	dummy := c.pool.Allocate()
	dummy.committed.Store(true)
	c.head.Store(dummy)
	c.tail.Store(dummy)
	return c
}

// TrySend publishes v, retrying until timeout elapses. timeout == 0 means
// try exactly once.
func (c *Channel[T]) TrySend(v T, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if c.trySendOnce(v) {
			return nil
		}
		if timeout <= 0 {
			return kerrors.ErrQueueFull
		}
		if time.Now().After(deadline) {
			return kerrors.ErrTimeout
		}
		runtimeYield()
	}
}

func (c *Channel[T]) trySendOnce(v T) bool {
	if c.size.Load() >= c.capacity {
		return false
	}

	n := c.pool.Allocate(func(nd *chanNode[T]) { nd.data = v })

	for {
		tail := c.tail.Load()
		next := tail.next.Load()
		if tail != c.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				c.tail.CompareAndSwap(tail, n)
				n.committed.Store(true)
				c.size.Add(1)
				return true
			}
			continue
		}
		c.tail.CompareAndSwap(tail, next)
	}
}

// TryReceive consumes the oldest committed value, retrying until timeout
// elapses. timeout == 0 means try exactly once.
func (c *Channel[T]) TryReceive(timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)
	for {
		if v, ok := c.tryReceiveOnce(); ok {
			return v, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			var zero T
			if timeout <= 0 {
				return zero, kerrors.ErrQueueEmpty
			}
			return zero, kerrors.ErrTimeout
		}
		runtimeYield()
	}
}

func (c *Channel[T]) tryReceiveOnce() (T, bool) {
	for {
		head := c.head.Load()
		tail := c.tail.Load()
		next := head.next.Load()

		if head != c.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				var zero T
				return zero, false
			}
			c.tail.CompareAndSwap(tail, next)
			continue
		}
		if !next.committed.Load() {
			// Link installed but value not yet visible — not an error,
			// just not ready. Treat exactly like an empty queue for this
			// attempt so the caller's timeout retry loop handles it.
			var zero T
			return zero, false
		}

		v := next.data
		if c.head.CompareAndSwap(head, next) {
			c.pool.Deallocate(head)
			c.size.Add(-1)
			return v, true
		}
	}
}

// Len returns the approximate current size.
func (c *Channel[T]) Len() int64 {
	return c.size.Load()
}

// Capacity returns the bounded capacity configured at construction.
func (c *Channel[T]) Capacity() int64 {
	return c.capacity
}

// Empty reports whether the channel currently holds no committed values.
func (c *Channel[T]) Empty() bool {
	return c.Len() <= 0
}
