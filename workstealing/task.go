package workstealing

// Task is the unit of work a Scheduler's workers run. Priority here is
// advisory, not an ordering key: this scheduler's whole point is low
// per-task overhead on a per-worker LIFO deque, not a global ordering —
// callers that need real priority ordering want the priority package
// instead. A task submitted with a higher priority is only yielded to
// once by its runner before executing, translating the reference
// scheduler's submit_with_priority "yield once" hint into Go.
type Task struct {
	Fn       func()
	Priority int
}
