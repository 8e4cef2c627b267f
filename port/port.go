// Package port defines the small set of architecture-specific
// operations the kernel core requires, and two implementations: a
// goroutine-backed "real" port used for actually running threads, and a
// stub port for driving the scheduler's internals in tests without
// spinning up goroutines. Neither the port interface nor its
// implementations know anything about priorities, TCBs, or scheduling
// policy - those stay entirely inside the kernel package.
package port

// ThreadContext is the port's view of one kernel thread: enough surface
// to build an execution vehicle for the thread's job, and to hand control
// back and forth on a context switch, without the port needing any
// kernel-internal bookkeeping.
type ThreadContext struct {
	Entry    func()
	ReturnFn func()

	resumeCh chan struct{}
}

// NewThreadContext creates a context wrapping entry (the thread's job
// function) and returnFn (invoked after entry returns; the kernel wires
// this to the thread's self-delete hook).
func NewThreadContext(entry, returnFn func()) *ThreadContext {
	return &ThreadContext{
		Entry:    entry,
		ReturnFn: returnFn,
		resumeCh: make(chan struct{}, 1),
	}
}

// Resume unparks the context's goroutine. Safe to call whether or not
// anyone is currently parked; a resume delivered before the corresponding
// Park is not lost, since the channel is buffered.
func (tc *ThreadContext) Resume() {
	select {
	case tc.resumeCh <- struct{}{}:
	default:
	}
}

// Park blocks the calling goroutine until Resume is called.
func (tc *ThreadContext) Park() {
	<-tc.resumeCh
}

// Port is the architecture seam consumed by the kernel core.
type Port interface {
	// DisableInterrupts and EnableInterrupts are the unconditional
	// hardware mask operations; the kernel's own master lock sits above
	// them.
	DisableInterrupts()
	EnableInterrupts()

	// InitStack prepares tc's execution vehicle so that, once resumed for
	// the first time, it runs tc.Entry and then tc.ReturnFn.
	InitStack(tc *ThreadContext)

	// RequestContextSwitch asks the port to perform a switch from current
	// to next. It must arrange for next to eventually run and, if
	// current is non-nil and distinct from next, must not return to the
	// caller until current is resumed again by some later switch.
	RequestContextSwitch(current, next *ThreadContext)

	// StartKernel hands control to the first thread. It may return to
	// the caller once the first thread has been started, as both
	// implementations in this package do.
	StartKernel(first *ThreadContext)

	// IdleLoop is the idle thread's body.
	IdleLoop()
}
