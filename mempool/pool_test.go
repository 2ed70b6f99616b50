package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	id   int
	tag  string
	data [8]byte
}

func TestAllocateDeallocateBalanced(t *testing.T) {
	p := New[widget](4)

	var slots []*widget
	for i := 0; i < 10; i++ {
		s := p.Allocate(func(w *widget) { w.id = i })
		require.Equal(t, i, s.id)
		slots = append(slots, s)
	}
	require.EqualValues(t, 10, p.Live())

	for _, s := range slots {
		p.Deallocate(s)
	}
	require.EqualValues(t, 0, p.Live())
}

func TestAllocateNeverAliasesLiveSlots(t *testing.T) {
	p := New[widget](2)

	a := p.Allocate(func(w *widget) { w.tag = "a" })
	b := p.Allocate(func(w *widget) { w.tag = "b" })
	require.NotSame(t, a, b)
	assert.Equal(t, "a", a.tag)
	assert.Equal(t, "b", b.tag)
}

func TestDeallocateZeroesSlot(t *testing.T) {
	p := New[widget](4)
	s := p.Allocate(func(w *widget) { w.id = 7; w.tag = "seven" })
	p.Deallocate(s)

	reused := p.Allocate()
	require.Same(t, s, reused)
	assert.Equal(t, 0, reused.id)
	assert.Equal(t, "", reused.tag)
}

func TestDeallocateNilIsNoop(t *testing.T) {
	p := New[widget](4)
	p.Deallocate(nil)
	require.EqualValues(t, 0, p.Live())
}

func TestConcurrentAllocateDeallocateStaysBalanced(t *testing.T) {
	p := New[widget](16)

	const goroutines = 8
	const rounds = 2000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				s := p.Allocate()
				s.id = i
				p.Deallocate(s)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 0, p.Live())
}

func TestAllocatedBytesGrowsWithChunks(t *testing.T) {
	p := New[widget](4)
	require.Zero(t, p.AllocatedBytes())

	for i := 0; i < 5; i++ {
		p.Allocate()
	}
	require.Positive(t, p.AllocatedBytes())
}
