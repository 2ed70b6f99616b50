// Package priority implements a priority- and delay-aware task scheduler:
// pending tasks sit in a max-heap ordered by priority (ties broken by the
// earlier schedule time), and a dispatcher goroutine wakes exactly when
// the next one becomes due instead of polling (spec.md §5's scheduler
// component).
package priority

import (
	"context"
	"time"
)

// TaskFunc is the unit of work a Scheduler runs. It receives a context
// that is cancelled if the task's Handle is cancelled before or during
// execution, and returns a result alongside an error so callers that
// need the outcome (executor.ThreadPoolExecutor, notably) can observe it.
type TaskFunc func(ctx context.Context) (any, error)

// Task is a single scheduled unit: what to run, how urgently, and when
// it becomes eligible to run. Priority ties are broken by ScheduleTime —
// the task that has been waiting longer goes first, matching the
// ordering the original scheduler's operator< encodes.
type Task struct {
	ID           int64
	Fn           TaskFunc
	Priority     int64
	ScheduleTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	index  int // heap.Interface bookkeeping, owned by taskHeap
}

// Handle is returned from every Schedule* call. It lets a caller cancel a
// task that has not yet started, or observe cancellation from inside the
// running task via Context().Done().
type Handle struct {
	ID     int64
	ctx    context.Context
	cancel context.CancelFunc
}

// Cancel marks the task cancelled. If the dispatcher has not yet popped
// it off the heap, it is dropped without running; if it is already
// executing, Context().Done() fires so a cooperative task function can
// stop early. Cancel is idempotent.
func (h *Handle) Cancel() {
	h.cancel()
}

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool {
	return h.ctx.Err() != nil
}

// Context returns the per-task context a TaskFunc is invoked with.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// newScheduled builds the Task/Handle pair Schedule* hands back, sharing
// a single cancellation context between them so Handle.Cancel() and the
// dispatcher's pre-run check observe the same state.
func newScheduled(id int64, fn TaskFunc, priority int64, at time.Time) (*Task, *Handle) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{ID: id, Fn: fn, Priority: priority, ScheduleTime: at, ctx: ctx, cancel: cancel}
	h := &Handle{ID: id, ctx: ctx, cancel: cancel}
	return t, h
}
