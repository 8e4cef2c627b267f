package kernel

import (
	"github.com/jdoe95/gokernel/internal/kassert"
	"github.com/jdoe95/gokernel/internal/kiface"
	"github.com/jdoe95/gokernel/olist"
	"github.com/jdoe95/gokernel/port"
)

// Thread is a kernel thread handle. The zero value is not a valid
// thread; threads are created with Kernel.CreateThread and referenced
// thereafter only by the *Thread it returns. There is no numeric thread
// ID: the pointer itself is the handle. The Kernel methods that take a
// *Thread act only on the thread passed; none of them accepts nil in
// place of the calling thread.
type Thread struct {
	name     string
	priority int
	state    ThreadState

	schedItem olist.Item // ready-queue membership; Value = this Thread
	delayItem olist.Item // delay-queue membership; Value = this Thread
	owned     *olist.List // memory blocks allocated by this thread

	waitInfo     *WaitRecord // set while Blocked; nil otherwise
	waitTimedOut bool     // set once a wait or delay of this thread ends by timeout; never cleared

	ctx *port.ThreadContext

	suspendDepth int // nested Suspend calls; Resume only clears at zero
	stackSize    int // accounting only; GoroutinePort manages real stacks itself
}

func newThread(name string, priority int) *Thread {
	t := &Thread{
		name:     name,
		priority: priority,
		owned:    olist.New(),
	}
	t.schedItem.Init()
	t.delayItem.Init()
	t.schedItem.Value = t
	t.delayItem.Value = t
	return t
}

// Name returns the thread's creation-time name, for logging and
// diagnostics only.
func (t *Thread) Name() string { return t.name }

// Priority returns the thread's current priority.
func (t *Thread) Priority() int { return t.priority }

// State returns the thread's current lifecycle state.
func (t *Thread) State() ThreadState { return t.state }

// WaitRecord returns the WaitRecord t is currently blocked on, or nil if
// t is not blocked on a synchronization object. Synchronization objects
// use this to inspect (and, for queue transfers, write to) a waiter's
// record before waking it via Kernel.WakeOne.
func (t *Thread) WaitRecord() *WaitRecord { return t.waitInfo }

// CreateThread installs a new thread at priority, with entry as its job
// function and stackSize bytes reserved from the pool for accounting
// (GoroutinePort manages the real goroutine stack itself; the reservation
// exists so pool occupancy and thread_info's OwnedBytes stay meaningful
// translations of the stack-and-TCB bookkeeping a native port would do).
// The thread is created suspended if startSuspended is true; otherwise it
// is made ready immediately, though it only actually runs once the
// scheduler next reconsiders who should, whether that is Start, a later
// reschedule, or the caller's own next blocking call. Creating a thread
// never itself preempts the caller (unlike ResumeThread, which runs a
// reschedule check).
func (k *Kernel) CreateThread(name string, priority, stackSize int, entry func(), startSuspended bool) (*Thread, error) {
	if priority < 0 || priority >= k.cfg.PrioCount {
		return nil, NewError("CreateThread", ErrCodeInvalidPriority, "priority out of range")
	}

	k.lock.Lock()
	t := newThread(name, priority)
	t.stackSize = stackSize
	if startSuspended {
		t.state = Suspended
		t.suspendDepth = 1
	} else {
		t.state = Ready
	}

	if stackSize > 0 {
		if _, ok := k.pool.allocate(t, stackSize); !ok {
			k.lock.Unlock()
			return nil, NewError("CreateThread", ErrCodePoolExhausted, "no room for stack reservation")
		}
	}

	t.ctx = port.NewThreadContext(
		func() { entry() },
		func() { k.threadReturned(t) },
	)
	k.cfg.Port.InitStack(t.ctx)
	k.threads[t] = struct{}{}

	if t.state == Ready {
		k.sched.readyEnqueue(t)
	}
	if k.cfg.Logger != nil {
		k.cfg.Logger.Debug("thread created", "thread", t.name, "priority", t.priority, "stack_size", stackSize, "state", t.state.String())
	}
	k.lock.Unlock()
	return t, nil
}

// threadReturned is wired as the thread's ReturnFn: a job function that
// returns is equivalent to the thread deleting itself.
func (k *Kernel) threadReturned(t *Thread) {
	k.DeleteThread(t)
}

// DeleteThread removes t from scheduling entirely and reclaims every
// memory block it owns in bulk. Deleting the currently running thread is
// allowed and triggers an immediate context switch, since a deleted
// thread can never run again.
func (k *Kernel) DeleteThread(t *Thread) {
	k.lock.Lock()
	if t.state == Deleted {
		k.lock.Unlock()
		return
	}

	switch t.state {
	case Ready:
		k.sched.readyRemove(t)
	case Blocked:
		olist.Remove(&t.schedItem)
		k.sched.disarmDelay(t)
	case Suspended:
		// not on any queue
	}
	t.state = Deleted
	k.pool.reclaimAll(t)
	delete(k.threads, t)

	if k.cfg.Logger != nil {
		k.cfg.Logger.Debug("thread deleted", "thread", t.name, "priority", t.priority)
	}

	if t == k.current {
		// A deleted thread can never run again; the switch is
		// unconditional, not gated by a priority comparison.
		k.unloadCurrent()
	}
	k.lock.Unlock()
}

// SuspendThread removes t from scheduling without deleting it. Suspend
// calls nest: a thread suspended twice needs two Resume calls before it
// becomes ready again.
func (k *Kernel) SuspendThread(t *Thread) {
	k.lock.Lock()
	t.suspendDepth++
	if t.state == Ready {
		k.sched.readyRemove(t)
		t.state = Suspended
	} else if t.state == Blocked {
		// A blocked thread leaves its waiter queue and any armed timeout,
		// so nothing can wake it while suspended. Its wait ends denied
		// (Result=false), reported once ResumeThread lets it run again.
		olist.Remove(&t.schedItem)
		k.sched.disarmDelay(t)
		t.waitInfo = nil
		t.state = Suspended
	}
	if t == k.current && t.state == Suspended {
		k.unloadCurrent()
	}
	k.lock.Unlock()
}

// ResumeThread undoes one SuspendThread. Only when the nesting count
// reaches zero, and the thread is in the Suspended state, does it become
// ready again.
func (k *Kernel) ResumeThread(t *Thread) {
	k.lock.Lock()
	if t.suspendDepth > 0 {
		t.suspendDepth--
	}
	if t.suspendDepth == 0 && t.state == Suspended {
		t.state = Ready
		k.sched.readyEnqueue(t)
		k.maybeReschedule(t.priority)
	}
	k.lock.Unlock()
}

// SetPriority changes t's priority, moving it within the ready queue if
// it is currently ready and triggering a reschedule check either way.
func (k *Kernel) SetPriority(t *Thread, priority int) error {
	if priority < 0 || priority >= k.cfg.PrioCount {
		return NewError("SetPriority", ErrCodeInvalidPriority, "priority out of range")
	}
	k.lock.Lock()
	oldPriority := t.priority
	if t.state == Ready {
		k.sched.readyRemove(t)
		t.priority = priority
		k.sched.readyEnqueue(t)
	} else {
		t.priority = priority
	}
	if k.cfg.Logger != nil && oldPriority != priority {
		k.cfg.Logger.Debug("thread priority changed", "thread", t.name, "old_priority", oldPriority, "new_priority", priority)
	}
	k.maybeReschedule(priority)
	k.lock.Unlock()
	return nil
}

// Yield gives up the remainder of the current thread's turn to any other
// ready thread at the same or higher priority. Rotating the ready ring
// before selecting the next thread is what lets an equal-priority thread
// take over; unloadCurrent is a no-op if nothing outranks current after
// the rotation.
func (k *Kernel) Yield() {
	k.lock.Lock()
	if k.current != nil {
		k.sched.rotateCurrent(k.current)
	}
	k.unloadCurrent()
	k.lock.Unlock()
}

// Delay blocks the calling thread for timeout ticks, with no wait queue
// involved: it is woken purely by the tick heartbeat.
func (k *Kernel) Delay(timeout Ticks) {
	if timeout == 0 {
		return
	}
	k.lock.Lock()
	t := k.current
	kassert.True(t != nil, "Delay called with no current thread")
	k.sched.readyRemove(t)
	t.state = Blocked
	t.waitInfo = &WaitRecord{Kind: kiface.WaitPlainDelay, blockTick: k.sched.tick}
	k.sched.armDelay(t, timeout)
	k.unloadCurrent()
	k.lock.Unlock()
}

// GetCurrent returns the thread that is running right now. The caller
// must already hold the lock via EnterCritical - see Block's doc comment
// in blocking.go for why this does not lock itself.
func (k *Kernel) GetCurrent() *Thread {
	return k.current
}

// maybeReschedule checks whether a thread that just became ready at
// candidatePriority outranks the current thread under the non-tick
// ("strict less-than") rule, and if so hands control to it immediately.
// Callers must hold k.lock; unloadCurrent preserves that invariant
// across the switch, returning only once this goroutine is current
// again.
func (k *Kernel) maybeReschedule(candidatePriority int) {
	if k.sched.rescheduleReq(k.current, candidatePriority) {
		k.unloadCurrent()
	}
}
