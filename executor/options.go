package executor

import (
	"runtime"

	"github.com/arvode/taskkernel/internal/obslog"
)

// Options configure a ThreadPoolExecutor. All zero values are replaced
// with sensible defaults in FillDefaults.
type Options struct {
	Workers int

	// MaxQueueSize bounds pending tasks before Submit* starts returning
	// kerrors.ErrQueueFull, translating the reference executor's
	// "Task queue is full" exception into an ordinary error return.
	MaxQueueSize int

	Logger obslog.Logger
}

// DefaultMaxQueueSize matches the reference executor's default.
const DefaultMaxQueueSize = 10000

func (o *Options) FillDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = DefaultMaxQueueSize
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
