package kernel

import (
	"github.com/jdoe95/gokernel/olist"
	"github.com/jdoe95/gokernel/port"
)

// unloadCurrent is the single point where a scheduling decision is acted
// on: it asks the scheduler who should run now and, if that is not the
// thread that is running, performs the switch. Every caller holds
// k.lock at the same depth both before and after this returns - the
// switch itself is invisible to the lock's nesting discipline, because
// the port's context switch is bracketed by masterLock.loan/reclaim,
// which drops to depth zero only for the duration of the actual
// hand-off and restores it once this goroutine is current again.
//
// This is also the natural preemption point: a thread can be
// interrupted and replaced by a higher-priority one only here, never in
// the middle of arbitrary kernel bookkeeping, because masterLock (and
// therefore interrupt masking) is held everywhere else.
func (k *Kernel) unloadCurrent() {
	next := k.sched.selectNext()
	if next == k.current {
		return
	}

	prev := k.current
	k.current = next

	var prevCtx, nextCtx *port.ThreadContext
	if prev != nil {
		prevCtx = prev.ctx
	}
	if next != nil {
		nextCtx = next.ctx
	}

	saved := k.lock.loan()
	k.cfg.Port.RequestContextSwitch(prevCtx, nextCtx)
	k.lock.reclaim(saved)
}

// lazyPreempt is unloadCurrent's counterpart for callers that must not
// force the running thread's own goroutine to park: the heartbeat source,
// which drives ticks from its own independent goroutine, and a
// synchronization object's wake path, which readies a waiter from the
// producer's goroutine but - per the wake protocol - defers actually
// switching to it rather than interrupting the producer's own kernel call
// in progress. It may switch control away from a thread whose goroutine
// it is safe to abandon mid-flight: no thread (current is nil) or the
// idle thread, which checks in on its own goroutine after every loop
// iteration (see idleCheckIn) and parks itself there once it notices it
// is no longer current.
//
// When an ordinary thread is current, lazyPreempt does not touch
// k.current at all, even if a higher-priority thread just became ready:
// forcing that switch here would call RequestContextSwitch on a goroutine
// other than the current thread's own, which has no way to suspend it out
// from under itself - only a thread's own goroutine can safely park
// itself, by calling unloadCurrent directly. The switch happens,
// correctly and safely, the next time that thread makes any blocking
// kernel call, since unloadCurrent always recomputes selectNext from
// scratch. This bounds preemption latency for a non-idle running thread
// to "until its own next kernel call" rather than true asynchronous
// preemption - an architecture-port concern for the heartbeat case (a
// real timer interrupt runs nested on the interrupted thread's own stack)
// and, for the wake case, the deferred-reschedule policy the protocol
// itself calls for (a producer's bookkeeping finishes before anything it
// just woke can run).
func (k *Kernel) lazyPreempt() {
	if k.current != nil && k.current != k.idle {
		return
	}
	next := k.sched.selectNext()
	if next == k.current {
		return
	}
	k.current = next
	if next != nil {
		next.ctx.Resume()
	}
}

// idleCheckIn is the idle thread's own cooperative preemption point,
// called once per idle loop iteration from idle's own goroutine. If
// lazyPreempt has already moved k.current away from idle, idle parks
// itself right here instead of spinning forever unmonitored; it is
// resumed again, still current, whenever the scheduler next selects it.
func (k *Kernel) idleCheckIn(idle *Thread) {
	k.lock.Lock()
	stillCurrent := k.current == idle
	k.lock.Unlock()
	if !stillCurrent {
		idle.ctx.Park()
	}
}

// blockCurrent takes the calling thread off the ready queue, records si
// as its wait record, optionally arms a timeout, and switches away. It
// returns once the thread is woken, either by a producer (wakeWaiter) or
// by timeout (the heartbeat path), reporting which. The thread is
// enqueued on waiters by priority, not arrival order, so a higher-priority
// latecomer is still granted before an already-waiting lower-priority
// thread; threads at the same priority are served FIFO among themselves.
//
// Callers must hold k.lock and must have already filled in every field
// of si except Result, which blockCurrent's wakers set before readying
// the thread.
func (k *Kernel) blockCurrent(waiters *olist.List, si *WaitRecord, timeout Ticks) *WaitRecord {
	t := k.current
	k.sched.readyRemove(t)
	t.state = Blocked
	si.blockTick = k.sched.tick
	t.waitInfo = si
	waiters.EnqueuePriority(&t.schedItem, uint32(t.priority))

	if timeout > 0 {
		k.sched.armDelay(t, timeout)
	}

	k.unloadCurrent()

	// Resumed: whoever woke us already set si.Result and, for queue
	// operations, si.Data/Size. t.waitInfo is cleared by the waker.
	return si
}

// wakeWaiter pops the head of waiters, removes any armed timeout, marks
// the wait as granted or denied, and readies the thread. Returns the
// woken thread, or nil if waiters was empty. It deliberately does not
// preempt the caller: per the wake protocol, a producer that wakes one or
// more waiters requests a reschedule exactly once, after every waiter has
// been handled, not after each individual wake (see Kernel.Reschedule).
// The caller fills in si.Data before calling this when a queue transfer
// is involved, since the waiter's wait record is addressed via the
// returned thread's WaitRecord.
func (k *Kernel) wakeWaiter(waiters *olist.List, granted bool) *Thread {
	item := waiters.Pop()
	if item == nil {
		return nil
	}
	t := item.Value.(*Thread)
	k.readyWaiter(t, granted)
	return t
}

// readyWaiter transitions a blocked thread back to Ready, recording
// granted in its wait record's Result and disarming any timeout. It never
// itself decides whether to preempt: see wakeWaiter and Reschedule.
func (k *Kernel) readyWaiter(t *Thread, granted bool) {
	k.sched.disarmDelay(t)
	if t.waitInfo != nil {
		t.waitInfo.Result = granted
		latency := uint64(k.sched.tick - t.waitInfo.blockTick)
		if k.cfg.Observer != nil {
			k.cfg.Observer.ObserveWake(t.waitInfo.Kind, !granted, latency)
		}
		if k.cfg.Logger != nil {
			k.cfg.Logger.Debug("thread woken", "thread", t.name, "kind", t.waitInfo.Kind.String(), "granted", granted, "latency_ticks", latency)
		}
	}
	t.waitInfo = nil
	t.state = Ready
	k.sched.readyEnqueue(t)
}

// HandleHeartbeat advances the tick counter by one and processes every
// consequence of that: threads whose delay or timeout expired are woken
// (with Result=false for a timed wait, since a plain Delay has no
// wait record outcome that matters), the running thread's priority ring is
// rotated, and a context switch is performed if warranted. It is safe to
// call from any goroutine; the port is expected to drive this from its
// own periodic source (see Ticker).
func (k *Kernel) HandleHeartbeat() {
	k.lock.Lock()
	res := k.sched.heartbeat()

	for _, t := range res.Woken {
		t.waitTimedOut = true
		k.readyWaiter(t, false)
	}

	if k.cfg.Observer != nil {
		k.cfg.Observer.ObserveHeartbeat(k.sched.tick, res.Wrapped)
	}
	if res.Wrapped && k.cfg.Logger != nil {
		k.cfg.Logger.Info("tick counter wrapped", "tick", k.sched.tick)
	}

	if k.current != nil {
		k.sched.rotateCurrent(k.current)
	}
	k.lazyPreempt()
	k.lock.Unlock()
}

// Block is the synchronization-object-facing entry point into the
// blocking protocol: it puts the calling thread to sleep on waiters,
// recording rec as its wait record, until a matching WakeOne grants it or
// timeout ticks elapse with no wake (0 waits forever). rec.Result reports
// which once this returns. Callers are the sync package's Semaphore,
// Mutex, and Queue, each passing their own waiter list and a WaitRecord
// tagged with their own WaitKind.
//
// The caller must already hold the lock via EnterCritical - Block, like
// WakeOne, WakeAllDenied, Reschedule, and GetCurrent below, is always
// called from inside a synchronization object's own EnterCritical/
// ExitCritical bracket, never standalone. It does not take the lock
// itself because masterLock is not reentrant: a second, independent
// Lock() call here would either deadlock (same goroutine) or, under the
// old nesting-depth design, silently skip real mutual exclusion
// (different goroutine) - see masterLock's doc comment.
func (k *Kernel) Block(waiters *olist.List, rec *WaitRecord, timeout Ticks) {
	if k.cfg.Observer != nil {
		k.cfg.Observer.ObserveBlock(rec.Kind)
	}
	if k.cfg.Logger != nil && k.current != nil {
		k.cfg.Logger.Debug("thread blocking", "thread", k.current.name, "kind", rec.Kind.String(), "timeout_ticks", timeout)
	}
	k.blockCurrent(waiters, rec, timeout)
}

// WakeOne grants the wait of the thread at the head of waiters, if any,
// and readies it. Returns the woken thread, or nil if waiters was empty.
// It does not preempt the caller - call Reschedule once after every
// waiter a single producing event can satisfy has been woken. A caller
// transferring bytes into the waiter (Queue) should read the head's
// WaitRecord via its Thread before calling WakeOne, since WakeOne pops it
// off waiters. Callers must already hold the lock via EnterCritical (see
// Block's doc comment).
func (k *Kernel) WakeOne(waiters *olist.List) *Thread {
	return k.wakeWaiter(waiters, true)
}

// WakeAllDenied empties waiters, readying every thread on it with its
// wait denied (Result=false) - used by a synchronization object's Delete
// to fail every pending wait rather than grant it, since the object is
// going away, not satisfying anyone's request. Like WakeOne, it does not
// preempt; callers that need to (Semaphore.Delete, Mutex.Delete) call
// Reschedule afterward. Callers must already hold the lock via
// EnterCritical (see Block's doc comment).
func (k *Kernel) WakeAllDenied(waiters *olist.List) {
	for k.wakeWaiter(waiters, false) != nil {
	}
}

// Reschedule requests that the scheduler reconsider who should run,
// after a wake operation has finished readying every waiter it intends
// to (Semaphore.Post/Reset, Mutex.Unlock, Queue's unlock-threads
// engine), rather than after each individual wake - letting a woken
// thread preempt mid-loop would let it observe the producer's
// bookkeeping half-finished.
//
// Like the heartbeat's request, this is lazy: a waking thread's
// goroutine cannot force the producer's own goroutine off its stack, so
// a newly-readied thread that outranks the producer does not actually
// run until the producer reaches its own next blocking call, yield, or
// exit. Until then it simply sits at the head of the ready queue.
//
// Callers must already hold the lock via EnterCritical (see Block's doc
// comment).
func (k *Kernel) Reschedule() {
	k.lazyPreempt()
}
