package kernel_test

import (
	stdsync "sync"
	"testing"
	"time"

	"github.com/jdoe95/gokernel/kernel"
	"github.com/jdoe95/gokernel/port"
	gosync "github.com/jdoe95/gokernel/sync"
	"github.com/stretchr/testify/require"
)

// These tests drive real goroutine-backed threads end to end through
// port.GoroutinePort, rather than the StubPort used by the package-internal
// unit tests. Since no real timer interrupt exists, every heartbeat tick is
// driven explicitly from this goroutine once require.Eventually confirms the
// thread(s) it is meant to wake have actually reached the state the scenario
// requires - avoiding a race between this goroutine and the threads running
// concurrently on their own.

func newScenarioKernel(t *testing.T, prioCount int) *kernel.Kernel {
	t.Helper()
	cfg := kernel.DefaultConfig(port.NewGoroutinePort())
	cfg.PrioCount = prioCount
	k, err := kernel.New(make([]byte, 16*1024), cfg)
	require.NoError(t, err)
	return k
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

// Scenario: two-thread priority preemption. The lower-priority thread's
// sem.post does not preempt its own caller, so its own very next statement
// runs before the higher-priority waiter it just woke does.
func TestScenarioTwoThreadPriorityPreemption(t *testing.T) {
	k := newScenarioKernel(t, 4)
	sem := gosync.NewSemaphore(k, 0)

	var mu stdsync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	traceLen := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(trace)
	}

	high, err := k.CreateThread("high", 0, 0, func() {
		sem.Wait(0)
		record("H")
	}, false)
	require.NoError(t, err)

	low, err := k.CreateThread("low", 2, 0, func() {
		k.Delay(1)
		sem.Post()
		record("L")
		k.Delay(1)
		record("H2")
	}, false)
	require.NoError(t, err)

	require.NoError(t, k.Start())

	eventually(t, func() bool {
		return high.State() == kernel.Blocked && low.State() == kernel.Blocked
	})

	k.HandleHeartbeat() // low's first delay expires: post, then record "L"
	eventually(t, func() bool { return traceLen() >= 2 })

	k.HandleHeartbeat() // low's second delay expires: record "H2"
	eventually(t, func() bool { return traceLen() >= 3 })

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"L", "H", "H2"}, trace)
}

// Scenario: a wait with a timeout and no producer returns false once the
// timeout elapses, leaving the counter untouched.
func TestScenarioTimeoutOnEmptySemaphore(t *testing.T) {
	k := newScenarioKernel(t, 4)
	sem := gosync.NewSemaphore(k, 0)
	result := make(chan bool, 1)

	th, err := k.CreateThread("waiter", 0, 0, func() {
		result <- sem.Wait(5)
	}, false)
	require.NoError(t, err)
	require.NoError(t, k.Start())

	eventually(t, func() bool { return th.State() == kernel.Blocked })

	for i := 0; i < 5; i++ {
		k.HandleHeartbeat()
	}

	require.False(t, <-result)
	require.Equal(t, 0, sem.GetCounter())
}

// Scenario: recursive mutex lock/unlock. Locking three times then unlocking
// three times leaves the mutex free; a fourth unlock is a no-op; a
// different thread's peek_lock reports true only once it is free.
func TestScenarioMutexRecursiveLockUnlock(t *testing.T) {
	k := newScenarioKernel(t, 4)
	m := gosync.NewMutex(k)
	lockerDone := make(chan struct{})
	peekResult := make(chan bool, 1)

	type lockerReport struct {
		lock1, lock2, lock3      bool
		lockedAfterThree         bool
		lockedAfterTwoUnlocks    bool
		unlockedAfterThirdUnlock bool
	}
	report := make(chan lockerReport, 1)

	_, err := k.CreateThread("locker", 0, 0, func() {
		var r lockerReport
		r.lock1 = m.Lock(0)
		r.lock2 = m.Lock(0)
		r.lock3 = m.Lock(0)
		r.lockedAfterThree = m.IsLocked()

		m.Unlock()
		m.Unlock()
		r.lockedAfterTwoUnlocks = m.IsLocked()
		m.Unlock()
		r.unlockedAfterThirdUnlock = !m.IsLocked()

		m.Unlock() // no-op: this thread no longer owns the mutex
		report <- r
		close(lockerDone)
	}, false)
	require.NoError(t, err)

	_, err = k.CreateThread("peeker", 1, 0, func() {
		<-lockerDone
		peekResult <- m.PeekLock()
	}, false)
	require.NoError(t, err)

	require.NoError(t, k.Start())

	r := <-report
	require.True(t, r.lock1)
	require.True(t, r.lock2)
	require.True(t, r.lock3)
	require.True(t, r.lockedAfterThree)
	require.True(t, r.lockedAfterTwoUnlocks, "still locked after two of three unlocks")
	require.True(t, r.unlockedAfterThirdUnlock)

	require.True(t, <-peekResult)
	require.False(t, m.IsLocked())
}

// Scenario: queue cross-wakeup. A reader blocks first; a writer's fast-path
// send satisfies it directly. The writer's own next statement still runs
// before the reader does - the reader only actually runs once the writer's
// thread body ends and its deletion forces a switch - but the reader is what
// the scheduler then picks, since the only other ready thread left is the
// idle thread, which it outranks.
func TestScenarioQueueCrossWakeup(t *testing.T) {
	k := newScenarioKernel(t, 4)
	q := gosync.NewQueue(k, 4)

	var mu stdsync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	traceLen := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(trace)
	}

	var got [3]byte
	results := make(chan bool, 2)
	reader, err := k.CreateThread("reader", 1, 0, func() {
		results <- q.Receive(got[:], 0)
		record("r")
	}, false)
	require.NoError(t, err)

	_, err = k.CreateThread("writer", 2, 0, func() {
		results <- q.Send([]byte("ABC"), 0)
		record("w")
	}, false)
	require.NoError(t, err)

	require.NoError(t, k.Start())

	eventually(t, func() bool { return reader.State() == kernel.Blocked })
	eventually(t, func() bool { return traceLen() >= 2 })

	require.True(t, <-results)
	require.True(t, <-results)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"w", "r"}, trace)
	require.Equal(t, "ABC", string(got[:]))
}

// Scenario: thread-death reclamation. A thread's allocations are fully
// reclaimed in bulk when it is deleted, and its handle no longer reports a
// live scheduling state.
func TestScenarioThreadDeathReclamation(t *testing.T) {
	k := newScenarioKernel(t, 4)

	th, err := k.CreateThread("owner", 0, 0, func() {}, true)
	require.NoError(t, err)

	before := k.PoolInfo()

	_, ok := k.AllocateFor(th, 64)
	require.True(t, ok)
	_, ok = k.AllocateFor(th, 96)
	require.True(t, ok)
	_, ok = k.AllocateFor(th, 32)
	require.True(t, ok)

	mid := k.PoolInfo()
	require.Less(t, mid.Free, before.Free)

	k.DeleteThread(th)

	after := k.PoolInfo()
	require.Equal(t, before.Free, after.Free, "every block owned by the deleted thread is reclaimed")
	require.Equal(t, kernel.Deleted, th.State())

	_, ok = k.ThreadInfo(th)
	require.False(t, ok, "thread_info is not callable on a deleted thread's handle")
}
