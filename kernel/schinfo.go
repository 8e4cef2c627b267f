package kernel

import "github.com/jdoe95/gokernel/internal/kiface"

// WaitRecord is the per-wait scratch record linking a blocked thread to the
// producer that will wake it and to the outcome of the wait. Kind is a
// tagged union selector: it says which of the fields below is meaningful,
// so the wake loop dispatches on it instead of on dynamic type
// information. Synchronization objects in the sync package build one of
// these per blocking call and pass it through Kernel.Block/WakeOne.
type WaitRecord struct {
	Kind   kiface.WaitKind
	Result bool // the outcome the waiter reads on resume: true = granted

	// Queue-specific transfer fields. Populated only when Kind is one of
	// the Queue* kinds: the producer performs the byte transfer into/out
	// of Data directly, before readying the waiter, so the waiter returns
	// with the operation already complete.
	Data []byte
	Size int

	blockTick uint32 // tick at which the wait began, for wake-latency metrics
}
