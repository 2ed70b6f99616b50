package priority

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arvode/taskkernel/internal/kerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, workers int) *Scheduler {
	t.Helper()
	s := New(Options{Workers: workers})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestScheduleRunsTask(t *testing.T) {
	s := newTestScheduler(t, 2)

	done := make(chan int, 1)
	_, err := s.Schedule(func(ctx context.Context) (any, error) {
		done <- 42
		return nil, nil
	}, 0)
	require.NoError(t, err)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

// TestPriorityOrdering is spec.md §8 scenario 2: with a single worker so
// dispatch order is observable, tasks submitted back to back at
// different priorities run in descending priority order.
func TestPriorityOrdering(t *testing.T) {
	s := New(Options{Workers: 1})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	var mu sync.Mutex
	var order []int64

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(3)

	record := func(priority int64) TaskFunc {
		return func(ctx context.Context) (any, error) {
			<-release
			mu.Lock()
			order = append(order, priority)
			mu.Unlock()
			wg.Done()
			return nil, nil
		}
	}

	// First task occupies the sole worker and blocks on release, so the
	// remaining two queue up and their relative order is deterministic.
	_, err := s.Schedule(func(ctx context.Context) (any, error) {
		<-release
		wg.Done()
		return nil, nil
	}, 100)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond) // let the first task claim the worker
	_, err = s.Schedule(record(1), 1)
	require.NoError(t, err)
	_, err = s.Schedule(record(5), 5)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond) // let both land in the heap before releasing
	close(release)
	wg.Wait()

	require.Equal(t, []int64{5, 1}, order)
}

// TestScheduleAfterDelaysExecution is spec.md §8 scenario 3: a task
// scheduled with a delay does not run before the delay elapses, and
// does run shortly after.
func TestScheduleAfterDelaysExecution(t *testing.T) {
	s := newTestScheduler(t, 2)

	ran := make(chan time.Time, 1)
	start := time.Now()
	_, err := s.ScheduleAfter(func(ctx context.Context) (any, error) {
		ran <- time.Now()
		return nil, nil
	}, 80*time.Millisecond, 0)
	require.NoError(t, err)

	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(start), 80*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed task never ran")
	}
}

// TestSchedulerWakesForOnlyDelayedTask is the regression the timer-armed
// dispatcher exists for: a scheduler holding nothing but one far-future
// task must still wake and run it without any other Schedule* call ever
// happening to nudge it.
func TestSchedulerWakesForOnlyDelayedTask(t *testing.T) {
	s := newTestScheduler(t, 1)

	ran := make(chan struct{}, 1)
	_, err := s.ScheduleAfter(func(ctx context.Context) (any, error) {
		close(ran)
		return nil, nil
	}, 50*time.Millisecond, 0)
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduler never woke for the only pending (delayed) task")
	}
}

// TestCancelPendingTaskPreventsExecution is spec.md §8 scenario 4: a
// pending task that is cancelled before its schedule time never runs.
func TestCancelPendingTaskPreventsExecution(t *testing.T) {
	s := newTestScheduler(t, 1)

	var ran atomic.Bool
	handle, err := s.ScheduleAfter(func(ctx context.Context) (any, error) {
		ran.Store(true)
		return nil, nil
	}, 100*time.Millisecond, 0)
	require.NoError(t, err)

	assert.True(t, s.Cancel(handle.ID))
	time.Sleep(200 * time.Millisecond)
	assert.False(t, ran.Load())
}

// TestShutdownCancelsTaskInFlightToWorker covers the task that dispatchLoop
// already popped off the heap (so cancelPending's heap walk never sees it)
// but could not hand to a worker because Shutdown closed stopCh first —
// its Handle must still report Cancelled, the same as every other task
// discarded at shutdown.
func TestShutdownCancelsTaskInFlightToWorker(t *testing.T) {
	s := New(Options{Workers: 1})

	release := make(chan struct{})
	defer close(release)

	_, err := s.Schedule(func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}, 0)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond) // let the sole worker claim the first task

	handle, err := s.Schedule(func(ctx context.Context) (any, error) {
		t.Fatal("this task must never run: the worker is permanently busy")
		return nil, nil
	}, 0)
	require.NoError(t, err)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shutdownCancel()
	_ = s.Shutdown(shutdownCtx) // the busy worker never returns, so this times out

	assert.True(t, handle.Cancelled())
}

func TestCancelUnknownTaskReportsNotFound(t *testing.T) {
	s := newTestScheduler(t, 1)
	assert.False(t, s.Cancel(999999))
}

func TestHandleCancelStopsCooperativeTask(t *testing.T) {
	s := newTestScheduler(t, 1)

	started := make(chan struct{})
	observedCancel := make(chan bool, 1)
	handle, err := s.Schedule(func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-ctx.Done():
			observedCancel <- true
		case <-time.After(time.Second):
			observedCancel <- false
		}
		return nil, nil
	}, 0)
	require.NoError(t, err)

	// Cancel only once the task is running, so this exercises cooperative
	// cancellation rather than the drop of a still-pending task.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task never started")
	}
	handle.Cancel()

	select {
	case sawCancel := <-observedCancel:
		assert.True(t, sawCancel)
	case <-time.After(2 * time.Second):
		t.Fatal("cooperative task never observed cancellation")
	}
}

func TestPendingTasksReflectsQueueDepth(t *testing.T) {
	s := New(Options{Workers: 1})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	release := make(chan struct{})
	_, err := s.Schedule(func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.ScheduleAfter(func(ctx context.Context) (any, error) {
			return nil, nil
		}, time.Hour, 0)
		require.NoError(t, err)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, s.PendingTasks())
	close(release)
}

func TestScheduleAfterShutdownFailsWithSchedulerStopped(t *testing.T) {
	s := New(Options{Workers: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err := s.Schedule(func(ctx context.Context) (any, error) {
		return nil, nil
	}, 0)
	assert.ErrorIs(t, err, kerrors.ErrSchedulerStopped)
}

func TestTaskPanicIsRecoveredNotPropagated(t *testing.T) {
	s := newTestScheduler(t, 1)

	done := make(chan struct{})
	_, err := s.Schedule(func(ctx context.Context) (any, error) {
		defer close(done)
		panic("boom")
	}, 0)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking task never completed its goroutine")
	}

	// The worker must still be alive to run a subsequent task.
	next := make(chan struct{})
	_, err = s.Schedule(func(ctx context.Context) (any, error) {
		close(next)
		return nil, nil
	}, 0)
	require.NoError(t, err)

	select {
	case <-next:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a task panic")
	}
}
