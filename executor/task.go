package executor

import (
	"context"
	"time"
)

// Fn is the unit of work submitted to a ThreadPoolExecutor.
type Fn func(ctx context.Context) (any, error)

// task is the pool-allocated control block backing one submission,
// mirroring the reference executor's Task struct held in its
// memory::MemoryPool<Task> — fn, priority, and schedule_time travel
// together so the executor's own heap can order them exactly as that
// struct's operator< does.
type task struct {
	fn           Fn
	priority     int
	scheduleTime time.Time
	future       *Future[any]
	index        int // heap.Interface bookkeeping
}
