package port

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// GoroutinePort is the "real" port: each kernel thread is a goroutine
// parked on its own resume channel. RequestContextSwitch unparks next and
// parks current, which is the park/resume hand-off that stands in for an
// actual context switch - at most one thread's goroutine is ever runnable
// at a time, by construction.
type GoroutinePort struct {
	// CPU pins the idle goroutine to one OS thread via SchedSetaffinity,
	// when non-negative.
	CPU int
}

// NewGoroutinePort creates a port with no CPU pinning.
func NewGoroutinePort() *GoroutinePort {
	return &GoroutinePort{CPU: -1}
}

func (p *GoroutinePort) DisableInterrupts() {}
func (p *GoroutinePort) EnableInterrupts()  {}

func (p *GoroutinePort) InitStack(tc *ThreadContext) {
	go func() {
		tc.Park()
		tc.Entry()
		tc.ReturnFn()
	}()
}

func (p *GoroutinePort) RequestContextSwitch(current, next *ThreadContext) {
	if next != nil {
		next.Resume()
	}
	if current != nil && current != next {
		current.Park()
	}
}

// StartKernel resumes the first thread. There is no boot stack to
// discard here, so this returns to the caller once the first thread's
// goroutine has been unparked, rather than never returning.
func (p *GoroutinePort) StartKernel(first *ThreadContext) {
	if first != nil {
		first.Resume()
	}
}

// IdleLoop pins the calling goroutine's OS thread to p.CPU, when set, and
// yields in a tight loop - there is never real work here, only readiness
// for the next heartbeat or wake.
func (p *GoroutinePort) IdleLoop() {
	if p.CPU >= 0 {
		runtime.LockOSThread()
		var set unix.CPUSet
		set.Zero()
		set.Set(p.CPU)
		_ = unix.SchedSetaffinity(0, &set)
	}
	runtime.Gosched()
}
