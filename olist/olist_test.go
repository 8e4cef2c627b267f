package olist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemInitIsDetached(t *testing.T) {
	var it Item
	it.Init()
	require.True(t, it.Detached())
	require.Equal(t, uint32(0), it.Tag)
}

func TestFIFOEnqueuePopRoundTrip(t *testing.T) {
	l := New()
	var a, b, c Item
	a.Init()
	b.Init()
	c.Init()

	l.EnqueueFIFO(&a)
	l.EnqueueFIFO(&b)
	l.EnqueueFIFO(&c)

	require.Equal(t, &a, l.Head())

	got := []*Item{l.Pop(), l.Pop(), l.Pop()}
	require.Equal(t, []*Item{&a, &b, &c}, got)
	require.True(t, l.Empty())

	// Every popped item comes back detached.
	for _, it := range got {
		require.True(t, it.Detached())
	}
}

func TestFIFORotate(t *testing.T) {
	l := New()
	var a, b, c Item
	a.Init()
	b.Init()
	c.Init()
	l.EnqueueFIFO(&a)
	l.EnqueueFIFO(&b)
	l.EnqueueFIFO(&c)

	require.Equal(t, &a, l.Head())
	l.RotateFIFO()
	require.Equal(t, &b, l.Head())
	l.RotateFIFO()
	require.Equal(t, &c, l.Head())
	l.RotateFIFO()
	require.Equal(t, &a, l.Head())

	// Rotate does not detach: a is still in the list, not reinitialized.
	require.False(t, a.Detached())
}

func TestRemoveItemDetaches(t *testing.T) {
	l := New()
	var a, b, c Item
	a.Init()
	b.Init()
	c.Init()
	l.EnqueueFIFO(&a)
	l.EnqueueFIFO(&b)
	l.EnqueueFIFO(&c)

	Remove(&b)
	require.True(t, b.Detached())

	got := []*Item{l.Pop(), l.Pop()}
	require.Equal(t, []*Item{&a, &c}, got)
	require.True(t, l.Empty())
}

func TestRemoveHeadUpdatesHead(t *testing.T) {
	l := New()
	var a, b Item
	a.Init()
	b.Init()
	l.EnqueueFIFO(&a)
	l.EnqueueFIFO(&b)

	Remove(&a)
	require.Equal(t, &b, l.Head())
}

func TestPriorityEnqueuePopsNonDecreasing(t *testing.T) {
	l := New()
	tags := []uint32{5, 1, 3, 3, 0, 9, 2}
	items := make([]*Item, len(tags))
	for i, tag := range tags {
		it := &Item{}
		it.Init()
		items[i] = it
		l.EnqueuePriority(it, tag)
	}

	var popped []uint32
	for !l.Empty() {
		popped = append(popped, l.Pop().Tag)
	}

	for i := 1; i < len(popped); i++ {
		require.LessOrEqual(t, popped[i-1], popped[i], "popped tags must be non-decreasing")
	}
}

func TestPriorityEnqueueTiesAreFIFO(t *testing.T) {
	l := New()
	var first, second Item
	first.Init()
	second.Init()

	l.EnqueuePriority(&first, 7)
	l.EnqueuePriority(&second, 7)

	require.Equal(t, &first, l.Pop())
	require.Equal(t, &second, l.Pop())
}

func TestPriorityHeadIsSmallestTag(t *testing.T) {
	l := New()
	var a, b, c Item
	a.Init()
	b.Init()
	c.Init()

	l.EnqueuePriority(&a, 10)
	require.Equal(t, &a, l.Head())
	l.EnqueuePriority(&b, 3)
	require.Equal(t, &b, l.Head())
	l.EnqueuePriority(&c, 20)
	require.Equal(t, &b, l.Head())
}
