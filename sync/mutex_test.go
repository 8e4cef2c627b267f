package sync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutexLockNonblockingFailsWhenHeldByAnotherThread(t *testing.T) {
	k := newBlockingTestKernel(t, 4)
	m := NewMutex(k)
	ownerLocked := make(chan bool, 1)

	// The owner delays after locking, so the caller below runs as the idle
	// thread rather than as the owner.
	owner, err := k.CreateThread("owner", 1, 0, func() {
		ownerLocked <- m.Lock(0)
		k.Delay(1000)
	}, false)
	require.NoError(t, err)
	require.NoError(t, k.Start())

	require.True(t, <-ownerLocked)
	eventuallyBlocked(t, owner)
	require.False(t, m.LockNonblocking())
}

func TestMutexRecursiveLockIncreasesDepthForOwner(t *testing.T) {
	k := newBlockingTestKernel(t, 4)
	m := NewMutex(k)
	result := make(chan [3]bool, 1)

	_, err := k.CreateThread("owner", 0, 0, func() {
		var r [3]bool
		r[0] = m.Lock(0)
		r[1] = m.LockNonblocking()
		r[2] = m.PeekLock()
		result <- r
		m.Unlock()
		m.Unlock()
	}, false)
	require.NoError(t, err)
	require.NoError(t, k.Start())

	r := <-result
	require.Equal(t, [3]bool{true, true, true}, r)
}

func TestMutexUnlockWakesHighestPriorityWaiterFirst(t *testing.T) {
	k := newBlockingTestKernel(t, 5)
	m := NewMutex(k)
	ownerLocked := make(chan bool, 1)
	resLow := make(chan bool, 1)
	resHigh := make(chan bool, 1)

	// Unlock acts only for the owning thread, so the owner unlocks from its
	// own body once the heartbeat below ends its delay.
	_, err := k.CreateThread("owner", 0, 0, func() {
		ownerLocked <- m.Lock(0)
		k.Delay(1)
		m.Unlock()
	}, false)
	require.NoError(t, err)

	low, err := k.CreateThread("low", 3, 0, func() { resLow <- m.Lock(0) }, false)
	require.NoError(t, err)

	high, err := k.CreateThread("high", 1, 0, func() { resHigh <- m.Lock(0) }, false)
	require.NoError(t, err)

	require.NoError(t, k.Start())
	require.True(t, <-ownerLocked)
	eventuallyBlocked(t, low)
	eventuallyBlocked(t, high)

	k.HandleHeartbeat()
	require.True(t, <-resHigh, "the highest-priority waiter is granted ownership first")

	select {
	case <-resLow:
		t.Fatal("the low-priority waiter must not be granted while the high-priority one still holds the mutex")
	default:
	}
}

func TestMutexPeekWaitDoesNotTransferOwnership(t *testing.T) {
	k := newBlockingTestKernel(t, 5)
	m := NewMutex(k)
	ownerLocked := make(chan bool, 1)
	peeked := make(chan bool, 1)
	locked := make(chan bool, 1)

	// The owner unlocks from its own body once the heartbeat below ends its
	// delay; the peeker is then the head waiter, ahead of the locker.
	_, err := k.CreateThread("owner", 0, 0, func() {
		ownerLocked <- m.Lock(0)
		k.Delay(1)
		m.Unlock()
	}, false)
	require.NoError(t, err)

	peeker, err := k.CreateThread("peeker", 1, 0, func() { peeked <- m.PeekWait(0) }, false)
	require.NoError(t, err)

	locker, err := k.CreateThread("locker", 2, 0, func() { locked <- m.Lock(0) }, false)
	require.NoError(t, err)

	require.NoError(t, k.Start())
	require.True(t, <-ownerLocked)
	eventuallyBlocked(t, peeker)
	eventuallyBlocked(t, locker)

	k.HandleHeartbeat()
	require.True(t, <-locked, "the lock waiter still receives ownership after the peek waiter is granted")
	require.True(t, <-peeked)
}

func TestMutexDeleteFailsAllWaiters(t *testing.T) {
	k := newBlockingTestKernel(t, 5)
	m := NewMutex(k)
	ownerLocked := make(chan bool, 1)
	resA := make(chan bool, 1)
	resB := make(chan bool, 1)

	// The owner runs first, so a and b both find the mutex held.
	_, err := k.CreateThread("owner", 0, 0, func() { ownerLocked <- m.Lock(0) }, false)
	require.NoError(t, err)

	thA, err := k.CreateThread("a", 1, 0, func() { resA <- m.Lock(0) }, false)
	require.NoError(t, err)

	thB, err := k.CreateThread("b", 2, 0, func() { resB <- m.Lock(0) }, false)
	require.NoError(t, err)

	require.NoError(t, k.Start())
	require.True(t, <-ownerLocked)
	eventuallyBlocked(t, thA)
	eventuallyBlocked(t, thB)

	m.Delete()
	require.False(t, <-resA)
	require.False(t, <-resB)
}

func TestMutexUnlockByNonOwnerIsNoop(t *testing.T) {
	k := newBlockingTestKernel(t, 4)
	m := NewMutex(k)
	require.NoError(t, k.Start())

	m.Unlock() // no thread owns it; must not panic or touch depth/owner
	require.False(t, m.IsLocked())
}
