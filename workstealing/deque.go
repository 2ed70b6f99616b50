// Package workstealing implements a work-stealing task scheduler: each
// worker owns a Chase–Lev deque, runs its own queue LIFO, and steals
// FIFO from a random victim when idle (spec.md §5's work-stealing
// scheduler component).
package workstealing

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// deque is a lock-free single-owner, multi-thief work-stealing deque,
// generalized from the byte-for-byte func()-only version in the
// corpus to hold *Task so priority and batch metadata travel with each
// entry. The owner pushes and pops at the bottom (LIFO — cache-friendly,
// newest work first); thieves steal at the top (FIFO — oldest work
// first, which also tends to be the coarsest-grained and so best worth
// stealing).
//
// Memory ordering follows the Chase–Lev paper as translated by the
// reference implementation: a dummy atomic op stands in for the release
// fence Push needs before publishing bottom, and Pop/Steal race on top
// with CAS for the single-element case.
type deque struct {
	_      cpu.CacheLinePad
	top    int64
	_      cpu.CacheLinePad
	bottom int64
	_      cpu.CacheLinePad
	array  atomic.Pointer[circularArray]
	stolen atomic.Int64
}

type circularArray struct {
	capacity int64
	buffer   []*Task
}

func newCircularArray(capacity int64) *circularArray {
	return &circularArray{capacity: capacity, buffer: make([]*Task, capacity)}
}

func (a *circularArray) get(i int64) *Task    { return a.buffer[i%a.capacity] }
func (a *circularArray) put(i int64, t *Task) { a.buffer[i%a.capacity] = t }

// newDeque creates a deque with the given initial capacity. A
// non-positive capacity falls back to 16, wide enough that most workers
// never need their first resize.
func newDeque(initialCapacity int64) *deque {
	if initialCapacity <= 0 {
		initialCapacity = 16
	}
	d := &deque{}
	d.array.Store(newCircularArray(initialCapacity))
	return d
}

// push adds a task to the bottom. Owner-only; never call concurrently
// with another push or pop on the same deque.
func (d *deque) push(task *Task) {
	bottom := atomic.LoadInt64(&d.bottom)
	top := atomic.LoadInt64(&d.top)
	array := d.array.Load()

	if size := bottom - top; size >= array.capacity-1 {
		array = d.resize(bottom, top, array)
		d.array.Store(array)
	}

	array.put(bottom, task)
	atomic.AddInt64(&d.bottom, 0) // release fence: publish the write above
	atomic.StoreInt64(&d.bottom, bottom+1)
}

// pop removes and returns the newest task, or nil if empty. Owner-only.
func (d *deque) pop() *Task {
	bottom := atomic.LoadInt64(&d.bottom) - 1
	array := d.array.Load()
	atomic.StoreInt64(&d.bottom, bottom)

	atomic.LoadInt64(&d.bottom) // seq-cst fence, paired with steal's fence
	top := atomic.LoadInt64(&d.top)

	if top > bottom {
		atomic.StoreInt64(&d.bottom, bottom+1)
		return nil
	}

	task := array.get(bottom)
	if top == bottom {
		if !atomic.CompareAndSwapInt64(&d.top, top, top+1) {
			task = nil
		}
		atomic.StoreInt64(&d.bottom, bottom+1)
		return task
	}

	return task
}

// steal removes and returns the oldest task, or nil if empty or if it
// lost a race against the owner's pop or another thief's steal.
// Safe to call from any goroutine concurrently.
func (d *deque) steal() *Task {
	top := atomic.LoadInt64(&d.top)
	atomic.LoadInt64(&d.top) // seq-cst fence, paired with pop's fence
	bottom := atomic.LoadInt64(&d.bottom)

	if top >= bottom {
		return nil
	}

	array := d.array.Load()
	task := array.get(top)
	if !atomic.CompareAndSwapInt64(&d.top, top, top+1) {
		return nil
	}
	d.stolen.Add(1)
	return task
}

func (d *deque) resize(bottom, top int64, old *circularArray) *circularArray {
	next := newCircularArray(old.capacity * 2)
	for i := top; i < bottom; i++ {
		next.put(i, old.get(i))
	}
	return next
}

// size is a snapshot; it may be stale the instant it's read.
func (d *deque) size() int64 {
	bottom := atomic.LoadInt64(&d.bottom)
	top := atomic.LoadInt64(&d.top)
	if size := bottom - top; size > 0 {
		return size
	}
	return 0
}

func (d *deque) empty() bool {
	return d.size() == 0
}

// stolenCount reports how many tasks have been taken from this deque by
// thieves rather than popped by its owner — an observability counter a
// Scheduler can use to tell whether stealing is actually happening or a
// worker is sitting idle next to a backlog it never reaches.
func (d *deque) stolenCount() int64 {
	return d.stolen.Load()
}
