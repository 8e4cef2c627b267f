package kernel

import "github.com/jdoe95/gokernel/olist"

// scheduler holds the ready queues, the delay queues, and the monotonic
// tick counter. It has no notion of goroutines or ports; it only decides,
// given the current set of ready and delayed threads, which thread should
// run next.
type scheduler struct {
	prioCount int
	ready     []*olist.List // one FIFO ring per priority level

	// Delay queues are kept priority-ordered by wake tick (Tag = wake
	// tick). Two queues alternate roles across a tick-counter wrap: normal
	// holds threads waking before the wrap, overflow holds threads waking
	// after it. heartbeat swaps the pointers when tick wraps to zero, so
	// "the queue for ticks past the wrap" and "the queue for ticks before
	// it" trade places without moving any items.
	delayNormal   *olist.List
	delayOverflow *olist.List

	tick Ticks
}

func newScheduler(prioCount int) *scheduler {
	s := &scheduler{
		prioCount:     prioCount,
		ready:         make([]*olist.List, prioCount),
		delayNormal:   olist.New(),
		delayOverflow: olist.New(),
	}
	for i := range s.ready {
		s.ready[i] = olist.New()
	}
	return s
}

// readyEnqueue puts t at the tail of its priority's ready ring.
func (s *scheduler) readyEnqueue(t *Thread) {
	s.ready[t.priority].EnqueueFIFO(&t.schedItem)
}

// readyRemove takes t out of whichever ready ring it is in, if any.
func (s *scheduler) readyRemove(t *Thread) {
	olist.Remove(&t.schedItem)
}

// highestReady returns the highest-priority non-empty ready ring, or -1.
func (s *scheduler) highestReady() int {
	for p := 0; p < s.prioCount; p++ {
		if !s.ready[p].Empty() {
			return p
		}
	}
	return -1
}

// selectNext returns the thread that should run now: the head of the
// highest-priority non-empty ready ring. Returns nil only if every ring
// is empty, which should not happen once the idle thread is installed at
// the lowest priority.
func (s *scheduler) selectNext() *Thread {
	p := s.highestReady()
	if p < 0 {
		return nil
	}
	return s.ready[p].Head().Value.(*Thread)
}

// rescheduleReq reports whether a context switch is warranted right now,
// comparing the priority of the thread that just became ready (or whose
// priority just rose) against the currently running thread. This is the
// strict variant: a reschedule fires only when the new thread is
// strictly higher priority (lower number) than current, since the
// currently running thread keeps the CPU on a tie outside of the tick
// heartbeat.
func (s *scheduler) rescheduleReq(current *Thread, candidate int) bool {
	if current == nil {
		return true
	}
	return candidate < current.priority
}

// rotateCurrent round-robins t's priority ring by one position. Called on
// every heartbeat tick so that equal-priority threads share the CPU. The
// rotation's effect on who runs next is not enforced immediately - a
// goroutine-backed running thread cannot be forced off its own stack from
// the heartbeat's goroutine (see lazyPreempt) - but selectNext picks it up
// the next time anything calls unloadCurrent, whether that is this thread
// yielding, blocking, or another thread's wake triggering a reschedule
// check.
func (s *scheduler) rotateCurrent(t *Thread) {
	s.ready[t.priority].RotateFIFO()
}

// armDelay schedules t to wake at tick s.tick+timeout. timeout of 0 is
// invalid for a delay (callers distinguish "no timeout" before calling
// this) and is rejected by the caller, not here.
func (s *scheduler) armDelay(t *Thread, timeout Ticks) {
	wake := s.tick + timeout
	if wake < s.tick {
		// wake wrapped past the 32-bit tick counter: belongs in the
		// queue for the post-wrap era.
		s.delayOverflow.EnqueuePriority(&t.delayItem, wake)
	} else {
		s.delayNormal.EnqueuePriority(&t.delayItem, wake)
	}
}

// disarmDelay removes t from whichever delay queue holds it, if any.
func (s *scheduler) disarmDelay(t *Thread) {
	olist.Remove(&t.delayItem)
}

// heartbeatResult carries what a tick produced, for the caller (kernel)
// to act on: which threads timed out and whether the tick counter
// wrapped. It does not decide whether a context switch is warranted -
// the caller enqueues the woken threads (each may need kernel-level
// bookkeeping, such as recording a timed-out wait result) before any
// scheduling decision can be made.
type heartbeatResult struct {
	Woken   []*Thread
	Wrapped bool
}

// heartbeat advances the tick counter by one, swapping the delay queues
// on wrap, and drains every entry in the now-current delay queue whose
// wake tick has arrived. It does not touch the ready queues.
func (s *scheduler) heartbeat() heartbeatResult {
	var result heartbeatResult

	prevTick := s.tick
	s.tick++
	if s.tick < prevTick {
		result.Wrapped = true
		s.delayNormal, s.delayOverflow = s.delayOverflow, s.delayNormal
	}

	for !s.delayNormal.Empty() {
		head := s.delayNormal.Head()
		if head.Tag != s.tick {
			break
		}
		t := head.Value.(*Thread)
		s.delayNormal.Remove(head)
		result.Woken = append(result.Woken, t)
	}

	return result
}
