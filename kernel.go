package taskkernel

import (
	"context"

	"github.com/arvode/taskkernel/executor"
	"github.com/arvode/taskkernel/lfqueue"
	"github.com/arvode/taskkernel/mempool"
	"github.com/arvode/taskkernel/priority"
	"github.com/arvode/taskkernel/workstealing"
	"go.uber.org/multierr"
)

// Options configures every scheduler a Kernel starts. Each field is the
// corresponding package's own Options type, so a caller who only needs
// one scheduler can configure just that field and let the others take
// FillDefaults' word for it.
type Options struct {
	Priority     priority.Options
	WorkStealing workstealing.Options
	Executor     executor.Options
}

// Kernel bundles every scheduler this module provides behind one
// constructor and one shutdown call, for callers that want the whole
// toolkit rather than importing subpackages individually.
type Kernel struct {
	Priority     *priority.Scheduler
	WorkStealing *workstealing.Scheduler
	Executor     *executor.ThreadPoolExecutor
}

// New starts all three schedulers immediately.
func New(opts Options) *Kernel {
	return &Kernel{
		Priority:     priority.New(opts.Priority),
		WorkStealing: workstealing.New(opts.WorkStealing),
		Executor:     executor.New(opts.Executor),
	}
}

// Shutdown stops all three schedulers, waiting up to ctx's deadline for
// each. It aggregates every error via multierr rather than stopping at
// the first one, so a slow executor shutdown doesn't hide a priority
// scheduler that also failed to stop in time.
func (k *Kernel) Shutdown(ctx context.Context) error {
	var err error
	err = multierr.Append(err, k.Priority.Shutdown(ctx))
	err = multierr.Append(err, k.WorkStealing.Shutdown(ctx))
	err = multierr.Append(err, k.Executor.Shutdown(ctx))
	return err
}

// NewQueue creates a bounded lock-free MPMC queue of capacity slots.
func NewQueue[T any](capacity int) *lfqueue.Queue[T] {
	return lfqueue.New[T](capacity)
}

// NewChannel creates a bounded, timeout-aware lock-free MPMC channel of
// capacity slots.
func NewChannel[T any](capacity int) *lfqueue.Channel[T] {
	return lfqueue.NewChannel[T](capacity)
}

// NewPool creates a typed slab allocator whose chunks hold chunkLen
// slots of T each.
func NewPool[T any](chunkLen int) *mempool.Pool[T] {
	return mempool.New[T](chunkLen)
}
