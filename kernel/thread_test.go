package kernel

import (
	"testing"

	"github.com/jdoe95/gokernel/port"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T, prioCount int) (*Kernel, *port.StubPort) {
	t.Helper()
	p := port.NewStubPort()
	cfg := DefaultConfig(p)
	cfg.PrioCount = prioCount
	k, err := New(make([]byte, 4096), cfg)
	require.NoError(t, err)
	return k, p
}

func TestCreateThreadRejectsInvalidPriority(t *testing.T) {
	k, _ := newTestKernel(t, 4)
	_, err := k.CreateThread("bad", 4, 0, func() {}, true)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeInvalidPriority))
}

func TestCreateThreadReservesStack(t *testing.T) {
	k, _ := newTestKernel(t, 4)
	before := k.PoolInfo()

	th, err := k.CreateThread("worker", 0, 64, func() {}, true)
	require.NoError(t, err)

	after := k.PoolInfo()
	require.Less(t, after.Free, before.Free)

	info, ok := k.ThreadInfo(th)
	require.True(t, ok)
	require.Equal(t, 64, info.StackSize)
	require.GreaterOrEqual(t, info.OwnedBytes, 64)
}

func TestCreateThreadStartSuspendedDoesNotSchedule(t *testing.T) {
	k, _ := newTestKernel(t, 4)
	th, err := k.CreateThread("worker", 0, 0, func() {}, true)
	require.NoError(t, err)
	require.Equal(t, Suspended, th.State())
}

func TestSuspendResumeNesting(t *testing.T) {
	k, _ := newTestKernel(t, 4)
	th, err := k.CreateThread("worker", 0, 0, func() {}, false)
	require.NoError(t, err)
	require.Equal(t, Ready, th.State())

	k.SuspendThread(th)
	k.SuspendThread(th)
	require.Equal(t, Suspended, th.State())

	k.ResumeThread(th)
	require.Equal(t, Suspended, th.State(), "still suspended after only one of two Resumes")

	k.ResumeThread(th)
	require.Equal(t, Ready, th.State())
}

func TestDeleteThreadReclaimsMemoryAndUnschedules(t *testing.T) {
	k, _ := newTestKernel(t, 4)
	th, err := k.CreateThread("worker", 0, 32, func() {}, true)
	require.NoError(t, err)
	infoBefore, ok := k.ThreadInfo(th)
	require.True(t, ok)
	require.Greater(t, infoBefore.OwnedBytes, 0)

	k.DeleteThread(th)
	require.Equal(t, Deleted, th.State())

	// A second delete on an already-deleted thread is a harmless no-op.
	k.DeleteThread(th)
	require.Equal(t, Deleted, th.State())
}

func TestSetPriorityValidatesRange(t *testing.T) {
	k, _ := newTestKernel(t, 4)
	th, err := k.CreateThread("worker", 1, 0, func() {}, true)
	require.NoError(t, err)

	require.Error(t, k.SetPriority(th, 10))
	require.NoError(t, k.SetPriority(th, 0))
	require.Equal(t, 0, th.Priority())
}
