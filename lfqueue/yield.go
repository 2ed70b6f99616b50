package lfqueue

import "runtime"

// runtimeYield gives other goroutines a chance to make progress during a
// bounded-deadline retry loop. spec.md §4.2 requires no parking
// primitive for queue timeouts — a cooperative yield is enough.
func runtimeYield() {
	runtime.Gosched()
}
