package priority

import "container/heap"

// taskHeap is a container/heap max-heap ordered by Priority, ties broken
// by the earlier ScheduleTime — the same shape as the teacher's
// priorityQueue[T], minus aging: this scheduler's ordering contract is
// priority-then-arrival, and reweighting it over time is a different
// policy than what was asked for here.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].ScheduleTime.Before(h[j].ScheduleTime)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// removeByID removes the task with the given ID from the heap, if
// present, maintaining heap order. Mirrors the original cancel()'s
// intent without its rebuild-the-whole-queue approach — container/heap
// already gives us an O(log n) in-place removal.
func removeByID(h *taskHeap, id int64) (*Task, bool) {
	for i, t := range *h {
		if t.ID == id {
			removed := heap.Remove(h, i).(*Task)
			return removed, true
		}
	}
	return nil, false
}
