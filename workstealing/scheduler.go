package workstealing

import (
	"bytes"
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arvode/taskkernel/internal/kerrors"
	"go.uber.org/zap"
)

// Scheduler runs submitted tasks on a fixed pool of workers, each owning
// a Chase–Lev deque. A worker drains its own deque LIFO before randomly
// picking a victim and stealing FIFO from it — the reference scheduler's
// exact policy, translated off a racy lazily-initialized thread-local
// queue index onto a deterministic one assigned at worker-goroutine
// creation.
type Scheduler struct {
	opts   Options
	deques []*deque

	running    atomic.Bool
	stopCh     chan struct{}
	nextSubmit atomic.Int64
	workersWG  sync.WaitGroup

	// workerOf maps a worker goroutine's id to the index of the deque it
	// owns, so a task running on a worker that calls Submit recurses onto
	// its own deque instead of being treated like an external caller.
	// Populated at workerLoop entry, cleared on exit.
	workerOf sync.Map

	mu     sync.Mutex
	wakeCh chan struct{}
}

// New starts a Scheduler with opts.Workers worker goroutines, each bound
// to its own deque at index i — assigned directly from the loop
// variable, never inferred from racy shared state at a worker's first
// touch.
func New(opts Options) *Scheduler {
	opts.FillDefaults()
	s := &Scheduler{
		opts:   opts,
		deques: make([]*deque, opts.Workers),
		stopCh: make(chan struct{}),
		wakeCh: make(chan struct{}),
	}
	s.running.Store(true)
	for i := range s.deques {
		s.deques[i] = newDeque(opts.InitialDequeCapacity)
	}

	s.workersWG.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go s.workerLoop(i)
	}
	return s
}

// Submit enqueues fn onto the calling worker's own deque if the caller is
// one of this scheduler's workers, preserving LIFO locality for a task
// that spawns more work; an external caller has no deque of its own, so
// one is chosen round-robin instead.
func (s *Scheduler) Submit(fn func()) error {
	return s.SubmitWithPriority(fn, 0)
}

// SubmitWithPriority enqueues fn the same way Submit does. Priority is
// advisory: a task submitted above priority 0 yields once to the
// runtime before running, the same best-effort hint the reference
// scheduler's submit_with_priority applies — this scheduler has no
// global ordering to honor beyond that.
func (s *Scheduler) SubmitWithPriority(fn func(), priority int) error {
	if !s.running.Load() {
		return kerrors.ErrSchedulerStopped
	}
	idx, ok := s.currentWorkerIndex()
	if !ok {
		idx = s.pickQueue()
	}
	s.deques[idx].push(&Task{Fn: wrapPriority(fn, priority), Priority: priority})
	s.wake()
	return nil
}

// SubmitBatch distributes fns across the scheduler's deques in
// contiguous stripes of len(fns)/N tasks each, visiting the deques in
// order from a freshly picked queue; the last deque visited also takes
// the remainder. Mirrors the reference scheduler's submit_batch.
func (s *Scheduler) SubmitBatch(fns []func()) error {
	if !s.running.Load() {
		return kerrors.ErrSchedulerStopped
	}
	if len(fns) == 0 {
		return nil
	}

	n := len(s.deques)
	perQueue := len(fns) / n
	cur := s.pickQueue()
	idx := 0
	for i := 0; i < n && idx < len(fns); i++ {
		count := perQueue
		if i == n-1 {
			count = len(fns) - idx
		}
		for j := 0; j < count && idx < len(fns); j++ {
			s.deques[cur].push(&Task{Fn: fns[idx]})
			idx++
		}
		cur = (cur + 1) % n
	}
	s.wake()
	return nil
}

// ActiveTasks reports how many of the scheduler's deques currently hold
// at least one task — a coarse load signal, not an exact count.
func (s *Scheduler) ActiveTasks() int {
	n := 0
	for _, d := range s.deques {
		if !d.empty() {
			n++
		}
	}
	return n
}

// StolenTasks reports the total number of tasks every worker's deque
// has handed to a thief rather than its own owner, summed across all
// workers. A scheduler under balanced load with idle workers will show
// this climbing; one where submissions already land evenly may show it
// near zero.
func (s *Scheduler) StolenTasks() int64 {
	var total int64
	for _, d := range s.deques {
		total += d.stolenCount()
	}
	return total
}

// Shutdown stops accepting new submissions and waits for every worker to
// drain its own deque and steal the rest dry, or for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) pickQueue() int {
	n := int64(len(s.deques))
	return int(s.nextSubmit.Add(1)-1) % int(n)
}

// currentWorkerIndex reports the deque index owned by the calling
// goroutine, if it is one of this scheduler's own workers.
func (s *Scheduler) currentWorkerIndex() (int, bool) {
	v, ok := s.workerOf.Load(goroutineID())
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// goroutineID extracts the current goroutine's id from its own stack
// trace header ("goroutine 123 [running]:…") — the standard way to get a
// goroutine-scoped key in Go without adding a dependency, since the
// runtime exposes no public goroutine-id API.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

func wrapPriority(fn func(), priority int) func() {
	if priority <= 0 {
		return fn
	}
	return func() {
		runtime.Gosched()
		fn()
	}
}

func (s *Scheduler) wake() {
	s.mu.Lock()
	old := s.wakeCh
	s.wakeCh = make(chan struct{})
	s.mu.Unlock()
	close(old)
}

func (s *Scheduler) waitChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeCh
}

func (s *Scheduler) workerLoop(index int) {
	defer s.workersWG.Done()

	gid := goroutineID()
	s.workerOf.Store(gid, index)
	defer s.workerOf.Delete(gid)

	if s.opts.PinWorkers {
		runtime.LockOSThread()
		if err := pinToCPU(index); err != nil {
			s.opts.Logger.Warn("workstealing: pin to cpu failed", zap.Int("worker", index), zap.Error(err))
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(index)))
	own := s.deques[index]
	n := len(s.deques)

	for {
		if t := own.pop(); t != nil {
			s.run(t)
			continue
		}

		if n > 1 {
			victim := (index + 1 + rng.Intn(n-1)) % n
			if t := s.deques[victim].steal(); t != nil {
				s.run(t)
				continue
			}
		}

		select {
		case <-s.stopCh:
			return
		case <-s.waitChan():
		case <-time.After(s.opts.IdlePark):
		}
	}
}

func (s *Scheduler) run(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.Logger.Error("workstealing: task panicked", zap.Any("recovered", r))
		}
	}()
	t.Fn()
}
