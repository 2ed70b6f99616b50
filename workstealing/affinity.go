//go:build linux

package workstealing

import (
	"golang.org/x/sys/unix"
)

// pinToCPU pins the calling OS thread to a single CPU. Workers call it
// from inside their own goroutine, locked to its OS thread first via
// runtime.LockOSThread, so the pin takes effect on the thread that will
// actually run that worker's loop.
func pinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
