//go:build !linux

package workstealing

// pinToCPU is a no-op off Linux; PinWorkers is honored only where
// sched_setaffinity exists.
func pinToCPU(cpu int) error {
	return nil
}
