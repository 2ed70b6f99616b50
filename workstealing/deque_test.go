package workstealing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDequePushPopIsLIFO(t *testing.T) {
	d := newDeque(4)
	a, b, c := &Task{}, &Task{}, &Task{}
	d.push(a)
	d.push(b)
	d.push(c)

	assert.Same(t, c, d.pop())
	assert.Same(t, b, d.pop())
	assert.Same(t, a, d.pop())
	assert.Nil(t, d.pop())
}

func TestDequeStealIsFIFO(t *testing.T) {
	d := newDeque(4)
	a, b, c := &Task{}, &Task{}, &Task{}
	d.push(a)
	d.push(b)
	d.push(c)

	assert.Same(t, a, d.steal())
	assert.Same(t, b, d.steal())
	assert.Same(t, c, d.steal())
	assert.Nil(t, d.steal())
}

func TestDequeGrowsPastInitialCapacity(t *testing.T) {
	d := newDeque(2)
	const n = 200
	tasks := make([]*Task, n)
	for i := range tasks {
		tasks[i] = &Task{}
		d.push(tasks[i])
	}
	assert.EqualValues(t, n, d.size())
	for i := n - 1; i >= 0; i-- {
		assert.Same(t, tasks[i], d.pop())
	}
	assert.True(t, d.empty())
}

// TestDequeStealNeverDuplicatesAgainstPop races one thief against the
// owner and checks every pushed task is observed by exactly one of them
// — the CAS races on top must never hand the same element to both.
func TestDequeStealNeverDuplicatesAgainstPop(t *testing.T) {
	const total = 20000
	d := newDeque(16)
	for i := 0; i < total; i++ {
		d.push(&Task{Priority: i})
	}

	var mu sync.Mutex
	seen := make(map[int]int, total)
	record := func(t *Task) {
		mu.Lock()
		seen[t.Priority]++
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			t := d.steal()
			if t != nil {
				record(t)
				continue
			}
			if d.empty() {
				return
			}
		}
	}()

	for {
		t := d.pop()
		if t != nil {
			record(t)
			continue
		}
		if d.empty() {
			break
		}
	}
	<-done

	sum := 0
	for _, c := range seen {
		sum += c
	}
	require.Equal(t, total, sum)
	for v, c := range seen {
		assert.Equal(t, 1, c, "task %d observed %d times", v, c)
	}
}
