// Package mempool provides a typed slab allocator with a free list,
// giving O(1) amortized allocation/deallocation and stable addresses
// for values handed to lock-free structures that CAS on pointers.
package mempool

import (
	"sync"
	"unsafe"
)

// DefaultBlockSize matches the teacher's chunk sizing intent: large enough
// to amortize allocation, small enough to stay cache-friendly.
const DefaultBlockSize = 4096

// Pool is a growable slab allocator for values of type T.
//
// Chunks are allocated as []T backing arrays; a chunk is never freed while
// the Pool lives, so addresses returned by Allocate remain stable for the
// Pool's lifetime. A single mutex guards the free list — the pool is not
// on a hot path relative to the lock-free structures it backs, so a lock
// here costs nothing the caller would otherwise save (spec.md §4.1).
type Pool[T any] struct {
	mu       sync.Mutex
	free     []*T
	chunks   [][]T
	chunkLen int
	live     int64
}

// New creates a Pool whose chunks hold chunkLen slots of T each. A
// non-positive chunkLen falls back to 64 slots per chunk, whatever the
// size of T.
func New[T any](chunkLen int) *Pool[T] {
	if chunkLen <= 0 {
		chunkLen = 64
	}
	return &Pool[T]{chunkLen: chunkLen}
}

// Allocate returns a slot, growing the pool by one chunk if the free list
// is empty. Each init function runs on the zero-valued slot in order,
// standing in for the constructor-argument forwarding spec.md §4.1
// describes for languages with placement-new.
func (p *Pool[T]) Allocate(init ...func(*T)) *T {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.growLocked()
	}
	n := len(p.free) - 1
	slot := p.free[n]
	p.free[n] = nil
	p.free = p.free[:n]
	p.live++
	p.mu.Unlock()

	var zero T
	*slot = zero
	for _, fn := range init {
		fn(slot)
	}
	return slot
}

// Deallocate resets the slot to its zero value and returns it to the free
// list. Passing nil is a no-op. Deallocating a pointer not obtained from
// this Pool is undefined behavior, same as the teacher's contract.
func (p *Pool[T]) Deallocate(slot *T) {
	if slot == nil {
		return
	}
	var zero T
	*slot = zero

	p.mu.Lock()
	p.free = append(p.free, slot)
	p.live--
	p.mu.Unlock()
}

// AllocatedBytes reports the total memory backing this pool's chunks,
// informational per spec.md §4.1.
func (p *Pool[T]) AllocatedBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	return int64(len(p.chunks)) * int64(p.chunkLen) * int64(sizeOf(zero))
}

// Live returns the number of slots currently allocated (not on the free
// list). Used by tests to assert a balanced allocate/deallocate sequence
// leaves no slot leaked.
func (p *Pool[T]) Live() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// growLocked appends one fresh chunk and threads its slots onto the free
// list. Must be called with p.mu held.
func (p *Pool[T]) growLocked() {
	chunk := make([]T, p.chunkLen)
	p.chunks = append(p.chunks, chunk)
	for i := range chunk {
		p.free = append(p.free, &chunk[i])
	}
}

// sizeOf reports sizeof(T); used only for the informational
// AllocatedBytes metric, never on a hot path.
func sizeOf[T any](v T) int {
	return int(unsafe.Sizeof(v))
}
