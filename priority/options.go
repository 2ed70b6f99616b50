package priority

import (
	"runtime"

	"github.com/arvode/taskkernel/internal/obslog"
)

// Options configure a Scheduler. All zero values are replaced with
// sensible defaults in FillDefaults.
type Options struct {
	// Workers is the number of goroutines running dispatched TaskFuncs.
	Workers int

	// QueueCapacity bounds PendingTasks before Schedule* starts failing
	// with kerrors.ErrQueueFull. Non-positive means unbounded.
	QueueCapacity int

	Logger obslog.Logger
}

// FillDefaults replaces zero-valued fields with the scheduler's
// defaults, the same pattern the teacher's Options.FillDefaults uses.
func (o *Options) FillDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	o.Logger = obslog.Resolve(o.Logger)
}

// DefaultOptions returns an Options populated with FillDefaults already
// applied.
func DefaultOptions() Options {
	var o Options
	o.FillDefaults()
	return o
}
