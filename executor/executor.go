package executor

import (
	"container/heap"
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arvode/taskkernel/internal/kerrors"
	"github.com/arvode/taskkernel/mempool"
	"go.uber.org/zap"
)

// ThreadPoolExecutor runs submitted Fns on a fixed worker pool, ordered
// by priority then schedule time. Task control blocks are allocated
// from a mempool.Pool so steady submit/complete cycles reuse memory
// instead of round-tripping the garbage collector for every task, the
// same intent as the reference executor's memory::MemoryPool<Task>.
//
// Unlike the reference implementation, the dispatcher arms a timer for
// the earliest pending schedule time rather than waiting only on
// "queue non-empty" — that original predicate never re-examines
// schedule_time, so a ScheduleAfter call with nothing else submitted
// afterward would simply never run.
type ThreadPoolExecutor struct {
	opts Options

	mu   sync.Mutex
	heap taskHeap
	pool *mempool.Pool[task]

	wakeCh       chan struct{}
	stopCh       chan struct{}
	dispatchDone chan struct{}
	workCh       chan *task
	workersWG    sync.WaitGroup

	stopped atomic.Bool
}

// New starts a ThreadPoolExecutor with opts.Workers worker goroutines
// plus one dispatcher goroutine, all running immediately.
func New(opts Options) *ThreadPoolExecutor {
	opts.FillDefaults()
	e := &ThreadPoolExecutor{
		opts:         opts,
		pool:         mempool.New[task](128),
		wakeCh:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		dispatchDone: make(chan struct{}),
		workCh:       make(chan *task),
	}
	e.workersWG.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go e.worker()
	}
	go e.dispatchLoop()
	return e
}

// Submit runs fn as soon as a worker is free, at priority 0.
func (e *ThreadPoolExecutor) Submit(fn Fn) (*Future[any], error) {
	return e.scheduleAt(fn, 0, time.Now())
}

// SubmitWithPriority runs fn as soon as a worker is free, ordered
// against other pending tasks by priority (higher runs first).
func (e *ThreadPoolExecutor) SubmitWithPriority(priority int, fn Fn) (*Future[any], error) {
	return e.scheduleAt(fn, priority, time.Now())
}

// ScheduleAfter runs fn once delay elapses, at priority 0.
func (e *ThreadPoolExecutor) ScheduleAfter(delay time.Duration, fn Fn) (*Future[any], error) {
	return e.scheduleAt(fn, 0, time.Now().Add(delay))
}

func (e *ThreadPoolExecutor) scheduleAt(fn Fn, priority int, at time.Time) (*Future[any], error) {
	if e.stopped.Load() {
		return nil, kerrors.ErrSchedulerStopped
	}

	future := newFuture[any]()
	t := e.pool.Allocate(func(t *task) {
		t.fn = fn
		t.priority = priority
		t.scheduleTime = at
		t.future = future
	})

	e.mu.Lock()
	if e.heap.Len() >= e.opts.MaxQueueSize {
		e.mu.Unlock()
		e.pool.Deallocate(t)
		return nil, kerrors.ErrQueueFull
	}
	heap.Push(&e.heap, t)
	e.mu.Unlock()

	e.wake()
	return future, nil
}

// QueueSize reports how many tasks are waiting, not yet handed to a
// worker.
func (e *ThreadPoolExecutor) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heap.Len()
}

// ThreadCount reports the number of worker goroutines.
func (e *ThreadPoolExecutor) ThreadCount() int {
	return e.opts.Workers
}

// Shutdown stops accepting new tasks and waits for in-flight tasks to
// finish, or for ctx to expire. Tasks still queued are not run: their
// futures resolve with kerrors.ErrSchedulerStopped.
func (e *ThreadPoolExecutor) Shutdown(ctx context.Context) error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)

	done := make(chan struct{})
	go func() {
		<-e.dispatchDone
		close(e.workCh)
		e.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *ThreadPoolExecutor) wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

func (e *ThreadPoolExecutor) dispatchLoop() {
	defer close(e.dispatchDone)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-e.stopCh:
			e.cancelPending()
			return
		default:
		}

		e.mu.Lock()
		for e.heap.Len() > 0 && !e.heap[0].scheduleTime.After(time.Now()) {
			t := heap.Pop(&e.heap).(*task)
			e.mu.Unlock()
			select {
			case e.workCh <- t:
			case <-e.stopCh:
				e.failPending(t)
				e.cancelPending()
				return
			}
			e.mu.Lock()
		}

		var timerC <-chan time.Time
		if e.heap.Len() > 0 {
			wait := e.heap[0].scheduleTime.Sub(time.Now())
			if wait < 0 {
				wait = 0
			}
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			timerC = timer.C
		} else if timer != nil {
			timer.Stop()
		}
		e.mu.Unlock()

		select {
		case <-e.stopCh:
			e.cancelPending()
			return
		case <-e.wakeCh:
		case <-timerC:
		}
	}
}

// failPending resolves a single task's future with ErrSchedulerStopped
// and returns its control block to the pool. Used for the one task
// already popped off the heap but never handed to a worker because
// shutdown raced the send to workCh.
func (e *ThreadPoolExecutor) failPending(t *task) {
	t.future.complete(nil, kerrors.ErrSchedulerStopped)
	e.pool.Deallocate(t)
}

// cancelPending resolves the future of every task still sitting in the
// heap with ErrSchedulerStopped and returns each control block to the
// pool, so a caller blocked on Future.Wait/Get for a task that never
// got to run is unblocked instead of hanging forever past Shutdown.
func (e *ThreadPoolExecutor) cancelPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.heap {
		e.failPending(t)
	}
	e.heap = nil
}

func (e *ThreadPoolExecutor) worker() {
	defer e.workersWG.Done()
	for t := range e.workCh {
		e.runTask(t)
	}
}

func (e *ThreadPoolExecutor) runTask(t *task) {
	fn, future := t.fn, t.future
	e.pool.Deallocate(t)

	defer func() {
		if r := recover(); r != nil {
			err := &kerrors.TaskPanicError{Recovered: r, Stack: string(debug.Stack())}
			e.opts.Logger.Error("executor: task panicked", zap.Error(err))
			future.complete(nil, err)
		}
	}()

	v, err := fn(context.Background())
	future.complete(v, err)
}
