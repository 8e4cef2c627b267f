// Package sync implements the synchronization primitives built on top of
// the kernel's blocking/wakeup protocol: a counting semaphore, a
// recursive mutex, and a bounded byte queue. None of these hold the
// master lock themselves; every operation brackets its critical section
// with Kernel.EnterCritical/ExitCritical, and calls Kernel.Block/WakeOne/
// WakeAllDenied/Reschedule/GetCurrent only from inside that bracket,
// since none of those lock on their own.
package sync

import (
	"github.com/jdoe95/gokernel/internal/kiface"
	"github.com/jdoe95/gokernel/kernel"
	"github.com/jdoe95/gokernel/olist"
)

// Semaphore is a counting semaphore: a non-negative counter and a
// priority-ordered queue of threads waiting for it to become positive.
type Semaphore struct {
	k       *kernel.Kernel
	counter int
	waiters *olist.List
}

// NewSemaphore creates a semaphore with the given initial counter value.
func NewSemaphore(k *kernel.Kernel, initial int) *Semaphore {
	return &Semaphore{k: k, counter: initial, waiters: olist.New()}
}

// Delete fails every pending wait with false. The Semaphore must not be
// used afterward.
func (s *Semaphore) Delete() {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	s.k.WakeAllDenied(s.waiters)
	s.k.Reschedule()
}

// Reset sets the counter to a new value, then walks the waiter queue:
// each "peek" waiter is granted without consuming the counter, each
// "take" waiter consumes one unit. Draining stops as soon as the queue
// empties or the counter reaches zero, even if the remaining head is a
// peek waiter that would not have consumed anything - this mirrors the
// counter-gated drain loop the semaphore has always used.
func (s *Semaphore) Reset(initial int) {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	s.reset(initial)
}

func (s *Semaphore) reset(counter int) {
	for !s.waiters.Empty() && counter != 0 {
		t := s.waiters.Head().Value.(*kernel.Thread)
		if t.WaitRecord().Kind != kiface.WaitSemPeek {
			counter--
		}
		s.k.WakeOne(s.waiters)
	}
	s.counter = counter
	s.k.Reschedule()
}

// Post increments the counter by one and drains the waiter queue exactly
// as Reset does, starting from counter+1.
func (s *Semaphore) Post() {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	s.reset(s.counter + 1)
}

// GetCounter returns the current counter value.
func (s *Semaphore) GetCounter() int {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	return s.counter
}

// Wait decreases the counter, blocking until it is positive or timeout
// ticks elapse (0 waits forever). Returns false on timeout, or if the
// semaphore is deleted while the caller waits.
func (s *Semaphore) Wait(timeout kernel.Ticks) bool {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	if s.counter > 0 {
		s.counter--
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitSemTake}
	s.k.Block(s.waiters, rec, timeout)
	return rec.Result
}

// WaitNonblocking decreases the counter without blocking, returning false
// immediately if the counter is already zero.
func (s *Semaphore) WaitNonblocking() bool {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	if s.counter > 0 {
		s.counter--
		return true
	}
	return false
}

// PeekWait is like Wait but never consumes the counter even on success:
// it blocks on the same waiter queue tagged as a peek, so a concurrent
// Reset/Post that drains the queue grants it without decrementing.
func (s *Semaphore) PeekWait(timeout kernel.Ticks) bool {
	s.k.EnterCritical()
	defer s.k.ExitCritical()
	if s.counter > 0 {
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitSemPeek}
	s.k.Block(s.waiters, rec, timeout)
	return rec.Result
}
