package sync

import (
	"github.com/jdoe95/gokernel/internal/kiface"
	"github.com/jdoe95/gokernel/kernel"
	"github.com/jdoe95/gokernel/olist"
)

// Mutex is a recursive mutex: a lock depth, an owning thread (nil when
// depth is zero), and a priority-ordered queue of threads waiting to
// acquire it.
type Mutex struct {
	k       *kernel.Kernel
	depth   int
	owner   *kernel.Thread
	waiters *olist.List
}

// NewMutex creates an unlocked mutex.
func NewMutex(k *kernel.Kernel) *Mutex {
	return &Mutex{k: k, waiters: olist.New()}
}

// Delete fails every pending lock attempt with false. The Mutex must not
// be used afterward.
func (m *Mutex) Delete() {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	m.k.WakeAllDenied(m.waiters)
	m.k.Reschedule()
}

// IsLocked reports whether the mutex is currently held by any thread.
func (m *Mutex) IsLocked() bool {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	return m.depth > 0
}

// PeekLock reports whether the calling thread could lock the mutex right
// now, without blocking and without actually acquiring it: true if the
// mutex is free or already owned by the caller.
func (m *Mutex) PeekLock() bool {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	current := m.k.GetCurrent()
	return m.owner == current || m.depth == 0
}

// LockNonblocking acquires the mutex without blocking, returning false if
// it is held by a different thread.
func (m *Mutex) LockNonblocking() bool {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	current := m.k.GetCurrent()
	if m.depth == 0 || m.owner == current {
		m.owner = current
		m.depth++
		return true
	}
	return false
}

// Lock acquires the mutex, recursively if the calling thread already
// holds it, blocking until it is free or timeout ticks elapse (0 waits
// forever). Returns false on timeout, or if the mutex is deleted while
// the caller waits.
func (m *Mutex) Lock(timeout kernel.Ticks) bool {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	current := m.k.GetCurrent()
	if m.depth == 0 || m.owner == current {
		m.owner = current
		m.depth++
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitMutexLock}
	m.k.Block(m.waiters, rec, timeout)
	return rec.Result
}

// Unlock releases one level of the calling thread's lock. A no-op if the
// caller does not own the mutex. At depth one, the head waiter (if any)
// is granted ownership directly rather than the mutex passing through an
// unlocked state; a "peek" waiter is granted without taking ownership and
// the loop continues to the next waiter, since peeking never transfers
// the lock.
func (m *Mutex) Unlock() {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	current := m.k.GetCurrent()
	if m.owner != current {
		return
	}

	switch {
	case m.depth > 1:
		m.depth--
	case m.depth == 1:
		for !m.waiters.Empty() {
			head := m.waiters.Head().Value.(*kernel.Thread)
			if head.WaitRecord().Kind == kiface.WaitMutexPeek {
				m.k.WakeOne(m.waiters)
				continue
			}
			m.owner = head
			m.k.WakeOne(m.waiters)
			m.k.Reschedule()
			return
		}
		m.depth = 0
		m.owner = nil
		m.k.Reschedule()
	}
}

// PeekWait blocks like Lock but, on a successful wake, is granted without
// ever taking ownership - it only reports that the mutex became
// available at some point during the wait. Concurrent Unlocks skip a
// peek waiter's ownership transfer and keep looking for a lock waiter
// (see Unlock).
func (m *Mutex) PeekWait(timeout kernel.Ticks) bool {
	m.k.EnterCritical()
	defer m.k.ExitCritical()
	current := m.k.GetCurrent()
	if m.depth == 0 || m.owner == current {
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitMutexPeek}
	m.k.Block(m.waiters, rec, timeout)
	return rec.Result
}
