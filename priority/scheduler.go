package priority

import (
	"container/heap"
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arvode/taskkernel/internal/kerrors"
	"go.uber.org/zap"
)

// Scheduler dispatches Tasks to a fixed pool of worker goroutines in
// priority order, honoring each Task's ScheduleTime. A dedicated
// dispatcher goroutine owns the heap; it arms a timer for the earliest
// pending ScheduleTime so a scheduler holding only delayed tasks still
// wakes on time, rather than waiting indefinitely for an unrelated
// submit or shutdown signal to nudge it.
type Scheduler struct {
	opts Options

	mu   sync.Mutex
	heap taskHeap

	nextID atomic.Int64

	wakeCh       chan struct{}
	stopCh       chan struct{}
	dispatchDone chan struct{}
	workCh       chan *Task
	workersWG    sync.WaitGroup

	stopped atomic.Bool
}

// New starts a Scheduler: opts.Workers worker goroutines plus one
// dispatcher goroutine, all running immediately.
func New(opts Options) *Scheduler {
	opts.FillDefaults()
	s := &Scheduler{
		opts:         opts,
		wakeCh:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		dispatchDone: make(chan struct{}),
		workCh:       make(chan *Task),
	}
	s.workersWG.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go s.worker()
	}
	go s.dispatchLoop()
	return s
}

// Schedule enqueues fn to run as soon as a worker is free, at the given
// priority. Higher Priority values run first; among equal priorities,
// the task that was scheduled earlier runs first.
func (s *Scheduler) Schedule(fn TaskFunc, priority int64) (*Handle, error) {
	return s.ScheduleAt(fn, time.Now(), priority)
}

// ScheduleAfter enqueues fn to become eligible to run after delay
// elapses.
func (s *Scheduler) ScheduleAfter(fn TaskFunc, delay time.Duration, priority int64) (*Handle, error) {
	return s.ScheduleAt(fn, time.Now().Add(delay), priority)
}

// ScheduleAt enqueues fn to become eligible to run at the given time. A
// time already in the past makes it immediately eligible.
func (s *Scheduler) ScheduleAt(fn TaskFunc, at time.Time, priority int64) (*Handle, error) {
	if s.stopped.Load() {
		return nil, kerrors.ErrSchedulerStopped
	}

	id := s.nextID.Add(1)
	task, handle := newScheduled(id, fn, priority, at)

	s.mu.Lock()
	if s.opts.QueueCapacity > 0 && s.heap.Len() >= s.opts.QueueCapacity {
		s.mu.Unlock()
		return nil, kerrors.ErrQueueFull
	}
	heap.Push(&s.heap, task)
	s.mu.Unlock()

	s.wake()
	return handle, nil
}

// Cancel removes the task with the given ID from the pending queue,
// reporting whether it was still pending. A task already handed to a
// worker is unaffected by Cancel — use the Handle returned from
// Schedule* to cancel cooperatively while running.
func (s *Scheduler) Cancel(taskID int64) bool {
	s.mu.Lock()
	task, found := removeByID(&s.heap, taskID)
	s.mu.Unlock()
	if found {
		task.cancel()
	}
	return found
}

// PendingTasks reports how many tasks are waiting in the heap, not yet
// handed to a worker.
func (s *Scheduler) PendingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

// Shutdown stops accepting new tasks, cancels everything still pending,
// and waits for in-flight tasks to finish or ctx to expire, whichever
// comes first. Calling Shutdown more than once is safe; only the first
// call does anything.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		<-s.dispatchDone
		close(s.workCh)
		s.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// dispatchLoop is the sole owner of the heap. It pops every task whose
// ScheduleTime has arrived, hands each to a worker, then sleeps until
// either a new task is submitted, the earliest remaining ScheduleTime
// arrives, or the scheduler is stopped.
func (s *Scheduler) dispatchLoop() {
	defer close(s.dispatchDone)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-s.stopCh:
			s.cancelPending()
			return
		default:
		}

		s.mu.Lock()
		for s.heap.Len() > 0 && !s.heap[0].ScheduleTime.After(time.Now()) {
			task := heap.Pop(&s.heap).(*Task)
			s.mu.Unlock()
			s.dispatch(task)
			s.mu.Lock()
		}

		var timerC <-chan time.Time
		if s.heap.Len() > 0 {
			wait := s.heap[0].ScheduleTime.Sub(time.Now())
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
		s.mu.Unlock()

		select {
		case <-s.stopCh:
			s.cancelPending()
			return
		case <-s.wakeCh:
		case <-timerC:
		}
	}
}

// dispatch hands a ready task to a worker, unless it was cancelled while
// still pending.
func (s *Scheduler) dispatch(task *Task) {
	if task.ctx.Err() != nil {
		return
	}
	select {
	case s.workCh <- task:
	case <-s.stopCh:
		task.cancel()
	}
}

func (s *Scheduler) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.heap {
		t.cancel()
	}
	s.heap = nil
}

func (s *Scheduler) worker() {
	defer s.workersWG.Done()
	for task := range s.workCh {
		s.runTask(task)
	}
}

func (s *Scheduler) runTask(task *Task) {
	if task.ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := &kerrors.TaskPanicError{Recovered: r, Stack: string(debug.Stack())}
			s.opts.Logger.Error("priority: task panicked", zap.Int64("task_id", task.ID), zap.Error(err))
		}
	}()

	if _, err := task.Fn(task.ctx); err != nil {
		s.opts.Logger.Warn("priority: task returned error", zap.Int64("task_id", task.ID), zap.Error(err))
	}
}
