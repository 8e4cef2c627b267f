package kernel

import (
	"github.com/jdoe95/gokernel/internal/kassert"
	"github.com/jdoe95/gokernel/port"
)

// Kernel is the scheduler, thread manager, allocator, and blocking
// protocol bundled into one value. A process hosts exactly one: there is
// no SMP, and Kernel is not safe to share across independently-running
// ports.
type Kernel struct {
	cfg   Config
	lock  *masterLock
	sched *scheduler
	pool  *pool

	threads map[*Thread]struct{}
	current *Thread
	idle    *Thread

	started bool
}

// New builds a Kernel with the given configuration and a memory pool
// backed by poolMem. poolMem's length is the pool's total size,
// including the per-block bookkeeping overhead every allocation incurs.
func New(poolMem []byte, cfg Config) (*Kernel, error) {
	if cfg.Port == nil {
		return nil, NewError("New", ErrCodePortRequired, "Config.Port must not be nil")
	}
	if cfg.PrioCount <= 0 {
		return nil, NewError("New", ErrCodeInvalidPriority, "Config.PrioCount must be positive")
	}

	align := cfg.MemAlign
	if align <= 0 {
		align = 1
	}
	k := &Kernel{
		cfg:     cfg,
		lock:    newMasterLock(cfg.Port),
		sched:   newScheduler(cfg.PrioCount),
		pool:    newPool(poolMem, align, cfg.MinBlockPayload),
		threads: make(map[*Thread]struct{}),
	}

	idle := newThread("idle", cfg.PrioCount-1)
	idle.state = Ready
	idle.stackSize = cfg.IdleStackSize
	idle.ctx = port.NewThreadContext(
		func() {
			for {
				cfg.Port.IdleLoop()
				k.idleCheckIn(idle)
			}
		},
		func() {},
	)
	cfg.Port.InitStack(idle.ctx)
	k.threads[idle] = struct{}{}
	k.sched.readyEnqueue(idle)
	k.idle = idle

	return k, nil
}


// Start hands control to the scheduler for the first time, running
// whichever thread is currently highest priority (ordinarily the first
// user thread created, since the idle thread sits at the lowest
// priority). Start returns once that thread is running on its own
// goroutine; it does not block for the kernel's lifetime.
func (k *Kernel) Start() error {
	k.lock.Lock()
	defer k.lock.Unlock()
	if k.started {
		return NewError("Start", ErrCodeAlreadyStarted, "kernel already started")
	}
	k.started = true

	first := k.sched.selectNext()
	kassert.True(first != nil, "Start found no ready thread, not even idle")
	k.current = first
	k.cfg.Port.StartKernel(first.ctx)
	return nil
}

// EnterCritical masks interrupts: it excludes the tick heartbeat and
// every other thread's goroutine until the matching ExitCritical. Every
// call site in this repository pairs one EnterCritical with exactly one
// ExitCritical with nothing recursive in between - masterLock is not
// reentrant, so calling EnterCritical again before the matching
// ExitCritical blocks: forever from the same goroutine, and until that
// ExitCritical from any other.
// This mirrors the original firmware's own disable-interrupts primitive,
// which nested via a depth counter; Go's goroutines made that counter a
// liability rather than a convenience once an independent goroutine
// (the heartbeat ticker) could call Lock/Unlock concurrently with
// whichever thread is current, so the nesting guarantee was dropped
// rather than rebuilt on top of per-goroutine ownership tracking - see
// masterLock's doc comment.
func (k *Kernel) EnterCritical() {
	k.lock.Lock()
}

// ExitCritical releases the lock acquired by the matching EnterCritical.
func (k *Kernel) ExitCritical() {
	k.lock.Unlock()
}

// Allocate reserves size bytes from the pool, owned by the calling
// thread. The block is reclaimed automatically if the owning thread is
// later deleted. Returns (0, false) if the pool has no block large
// enough to satisfy the request.
func (k *Kernel) Allocate(size int) (MemHandle, bool) {
	k.lock.Lock()
	defer k.lock.Unlock()
	h, ok := k.pool.allocate(k.current, size)
	if !ok {
		if k.cfg.Observer != nil {
			k.cfg.Observer.ObserveAllocFailure(size)
		}
		if k.cfg.Logger != nil {
			owner := "none"
			if k.current != nil {
				owner = k.current.name
			}
			k.cfg.Logger.Warn("allocation failed", "requested_bytes", size, "thread", owner)
		}
	}
	return h, ok
}

// AllocateFor reserves size bytes owned by an explicit thread rather
// than the caller, used internally for thread-creation bookkeeping
// (stack accounting) and exposed for tests that need to attribute
// memory to a thread other than the current one.
func (k *Kernel) AllocateFor(owner *Thread, size int) (MemHandle, bool) {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.pool.allocate(owner, size)
}

// Free returns h to the pool. Returns false if h is not a currently
// allocated handle.
func (k *Kernel) Free(h MemHandle) bool {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.pool.release(h)
}

// Bytes returns the payload slice backing h, or nil if h is stale. The
// slice aliases the pool's arena directly; callers must not retain it
// past a Free of the same handle.
func (k *Kernel) Bytes(h MemHandle) []byte {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.pool.bytes(h)
}

// BlockInfo reports the size and owner of an allocated block.
func (k *Kernel) BlockInfo(h MemHandle) (BlockInfo, bool) {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.pool.blockInfo(h)
}

// PoolInfo reports the pool's overall occupancy.
func (k *Kernel) PoolInfo() PoolInfo {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.pool.poolInfo()
}

// ThreadInfo describes one thread's scheduling state and memory
// footprint, for diagnostics.
type ThreadInfo struct {
	Name       string
	Priority   int
	State      ThreadState
	StackSize  int
	OwnedBytes int
}

// ThreadInfo reports t's current scheduling state and the total size of
// every block it currently owns. Returns (ThreadInfo{}, false) if t has
// been deleted: a *Thread handle stays valid Go memory past DeleteThread
// (nothing frees the struct itself, since callers may still hold the
// pointer), so the only way to tell a stale handle from a live one is
// this bool, exactly as BlockInfo does for a freed MemHandle.
func (k *Kernel) ThreadInfo(t *Thread) (ThreadInfo, bool) {
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.state == Deleted {
		return ThreadInfo{}, false
	}
	return ThreadInfo{
		Name:       t.name,
		Priority:   t.priority,
		State:      t.state,
		StackSize:  t.stackSize,
		OwnedBytes: k.pool.ownedBytes(t),
	}, true
}
