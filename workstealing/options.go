package workstealing

import (
	"runtime"
	"time"

	"github.com/arvode/taskkernel/internal/obslog"
)

// Options configure a Scheduler. All zero values are replaced with
// sensible defaults in FillDefaults.
type Options struct {
	Workers int

	// InitialDequeCapacity sizes each worker's deque before its first
	// resize. Non-positive falls back to 16.
	InitialDequeCapacity int64

	// IdlePark bounds how long an idle worker waits for a wake signal
	// before checking running/active-task state again, mirroring the
	// reference scheduler's 100ms cv_.wait_for.
	IdlePark time.Duration

	// PinWorkers, on Linux, pins each worker goroutine's OS thread to a
	// dedicated CPU via pinToCPU, carried over from the teacher's
	// affinity.go hook.
	PinWorkers bool

	Logger obslog.Logger
}

// DefaultIdlePark matches the reference scheduler's wait_for duration.
const DefaultIdlePark = 100 * time.Millisecond

func (o *Options) FillDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.InitialDequeCapacity <= 0 {
		o.InitialDequeCapacity = 16
	}
	if o.IdlePark <= 0 {
		o.IdlePark = DefaultIdlePark
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
