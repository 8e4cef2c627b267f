// Package kernel implements the scheduler, thread manager, thread-scoped
// allocator, and blocking/wakeup protocol at the core of the simulated
// real-time kernel. Synchronization objects built on top of the blocking
// protocol (semaphore, mutex, byte queue) live in the sibling sync
// package.
package kernel

import (
	"github.com/jdoe95/gokernel/internal/kiface"
	"github.com/jdoe95/gokernel/internal/logging"
	"github.com/jdoe95/gokernel/port"
)

// Ticks is a duration or absolute timestamp expressed in heartbeat ticks.
// A timeout value of 0 passed to a blocking call means "no timeout, wait
// forever."
type Ticks = uint32

// ThreadState is the lifecycle state of a thread.
type ThreadState int

const (
	Ready ThreadState = iota
	Blocked
	Suspended
	Deleted
)

func (s ThreadState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Suspended:
		return "suspended"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MemHandle is an opaque reference to an allocated memory block. The zero
// value is never a valid allocation.
type MemHandle uint64

// Config configures a Kernel at construction time. The zero value is not
// usable; build one with DefaultConfig.
type Config struct {
	// PrioCount is the number of priority levels. Priority 0 is highest;
	// PrioCount-1 is reserved for the idle thread.
	PrioCount int
	// MemAlign is the allocator's granularity, a power of two.
	MemAlign int
	// MinBlockPayload is the smallest user payload size the allocator
	// guarantees to support without fragmentation pathology.
	MinBlockPayload int
	// IdleStackSize is the stack size recorded for the idle thread (its
	// ThreadInfo.StackSize). Unlike a user thread's stack size, nothing
	// is reserved from the pool for it.
	IdleStackSize int

	Port     port.Port
	Logger   *logging.Logger
	Observer kiface.Observer
}

// DefaultConfig returns a Config with reasonable build-time defaults,
// wired to p.
func DefaultConfig(p port.Port) Config {
	return Config{
		PrioCount:       8,
		MemAlign:        8,
		MinBlockPayload: 16,
		IdleStackSize:   256,
		Port:            p,
		Logger:          logging.Default(),
		Observer:        kiface.Observer(noopObserver{}),
	}
}

type noopObserver struct{}

func (noopObserver) ObserveReschedule(int, int)         {}
func (noopObserver) ObserveHeartbeat(uint32, bool)      {}
func (noopObserver) ObserveBlock(kiface.WaitKind)       {}
func (noopObserver) ObserveWake(kiface.WaitKind, bool, uint64) {}
func (noopObserver) ObserveAllocFailure(int)            {}
