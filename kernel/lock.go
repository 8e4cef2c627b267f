package kernel

import (
	"sync"

	"github.com/jdoe95/gokernel/internal/kassert"
	"github.com/jdoe95/gokernel/port"
)

// masterLock is the interrupt-masking lock: the only serialization
// primitive between a thread's kernel calls and the tick heartbeat, and
// between independently-running kernel-thread goroutines under
// port.GoroutinePort - there is no separate spinlock because there is no
// SMP. A real sync.Mutex sits underneath: Go goroutines genuinely run
// concurrently, unlike the single CPU this protocol was designed for, so
// the mutex is what makes "disable interrupts" actually exclude other
// goroutines from the critical section, including the independent
// goroutine port.Ticker drives HandleHeartbeat from.
//
// Lock/Unlock are not reentrant: every exported Kernel method that does
// kernel work while already inside another's critical section (Block,
// WakeOne, WakeAllDenied, Reschedule, GetCurrent) assumes the caller
// already holds the lock via EnterCritical, rather than acquiring it
// again itself. An earlier version tracked a nesting depth and skipped
// the mutex whenever depth was already nonzero, reasoning that only one
// goroutine is ever "current" and therefore ever nests a call - but the
// heartbeat ticker's goroutine calls Lock/Unlock independently of
// whichever goroutine is current, so that skip let it read and write
// depth concurrently with a thread's own kernel call, an actual data
// race, and worse, let it proceed into the critical section without
// ever actually waiting for the mutex. depth now only ever reaches 1,
// kept purely so loan/reclaim have something to save and restore across
// the one place this lock is ever handed off mid-hold (the port's
// context-switch trigger).
type masterLock struct {
	mu    sync.Mutex
	depth int
	port  port.Port
}

func newMasterLock(p port.Port) *masterLock {
	return &masterLock{port: p}
}

// Lock acquires the lock, blocking until no other goroutine holds it,
// and masks interrupts.
func (l *masterLock) Lock() {
	l.mu.Lock()
	l.port.DisableInterrupts()
	l.depth++
	kassert.True(l.depth == 1, "master lock locked while already held")
}

// Unlock releases the lock and unmasks interrupts.
func (l *masterLock) Unlock() {
	kassert.True(l.depth == 1, "master lock underflow")
	l.depth--
	l.port.EnableInterrupts()
	l.mu.Unlock()
}

// Depth returns the current nesting depth.
func (l *masterLock) Depth() int {
	return l.depth
}

// loan drops the lock to depth zero and releases the underlying mutex,
// returning the depth the caller held so it can be restored with
// reclaim. This is the "natural preemption point" of unloadCurrent: the
// ONE place the master lock is handed to the port so a pending context
// switch can actually run.
func (l *masterLock) loan() int {
	kassert.True(l.depth > 0, "loan called while not holding the lock")
	saved := l.depth
	l.depth = 0
	l.port.EnableInterrupts()
	l.mu.Unlock()
	return saved
}

// reclaim re-acquires the lock and restores it to the depth returned by a
// prior loan.
func (l *masterLock) reclaim(saved int) {
	l.mu.Lock()
	l.depth = saved
	if saved > 0 {
		l.port.DisableInterrupts()
	}
}
