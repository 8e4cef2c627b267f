// Package olist implements the intrusive doubly-linked circular list used
// by every queue in the kernel: the per-priority ready queues, the two
// delay queues, every synchronization object's waiter queue, and the
// allocator's free list and per-thread owned-block lists.
//
// A single generic List/Item pair serves both the FIFO and
// priority-ordered disciplines, rather than maintaining two near-duplicate
// copies of the same splicing logic for the scheduler and the allocator.
package olist

import "github.com/jdoe95/gokernel/internal/kassert"

// Item is one node in a List. The zero value is not ready for use; call
// Init first. An Item not currently in any List is "detached": Prev and
// Next loop back to itself, List is nil, and Tag is 0.
type Item struct {
	prev *Item
	next *Item
	list *List
	// Tag orders the item within a priority List (smaller sorts first).
	// Unused by FIFO-only lists.
	Tag uint32
	// Value is an opaque, caller-owned payload (the owning TCB or memory
	// block header index). olist never inspects it.
	Value any
}

// Init resets it to the detached state.
func (it *Item) Init() {
	it.prev = it
	it.next = it
	it.list = nil
	it.Tag = 0
}

// Detached reports whether it is not currently a member of any List.
func (it *Item) Detached() bool {
	return it.list == nil
}

// List is a circular list addressed by a single head pointer; the head's
// Prev is therefore the tail, giving O(1) access to both ends without a
// separate tail field.
type List struct {
	head *Item
}

// New returns an empty List.
func New() *List {
	return &List{}
}

// Empty reports whether the list has no items.
func (l *List) Empty() bool {
	return l.head == nil
}

// Head returns the first item, or nil if the list is empty. For a
// priority list this is the item with the smallest Tag.
func (l *List) Head() *Item {
	return l.head
}

// EnqueueFIFO appends it at the tail (before the current head).
func (l *List) EnqueueFIFO(it *Item) {
	kassert.True(it.Detached(), "olist: EnqueueFIFO on item already in a list")
	it.list = l
	if l.head == nil {
		it.prev, it.next = it, it
		l.head = it
		return
	}
	insertBetween(l.head.prev, it, l.head)
}

// EnqueuePriority inserts it after the last existing item whose Tag is
// less than or equal to tag, so items with equal tags are served FIFO
// among themselves. The head is always the smallest-tag item.
func (l *List) EnqueuePriority(it *Item, tag uint32) {
	kassert.True(it.Detached(), "olist: EnqueuePriority on item already in a list")
	it.Tag = tag
	it.list = l

	if l.head == nil {
		it.prev, it.next = it, it
		l.head = it
		return
	}

	var after *Item
	cur := l.head
	for {
		if cur.Tag <= tag {
			after = cur
		} else {
			break
		}
		cur = cur.next
		if cur == l.head {
			break
		}
	}

	if after == nil {
		// tag is smaller than every existing item: new head.
		insertBetween(l.head.prev, it, l.head)
		l.head = it
		return
	}
	insertBetween(after, it, after.next)
}

// Pop detaches and returns the head item, or nil if the list is empty.
func (l *List) Pop() *Item {
	it := l.head
	if it == nil {
		return nil
	}
	l.Remove(it)
	return it
}

// RotateFIFO advances the head to head.Next without detaching anything:
// the O(1) equivalent of Pop followed by EnqueueFIFO of the same item,
// giving round-robin rotation among a priority's ready threads.
func (l *List) RotateFIFO() {
	if l.head != nil {
		l.head = l.head.next
	}
}

// Remove detaches it from whatever list it currently belongs to. The
// caller passes only the item; Remove locates the correct list and head
// via the item's owning-list back-reference.
func (l *List) Remove(it *Item) {
	kassert.True(it.list == l, "olist: Remove called with item not owned by this list")
	if it.next == it {
		l.head = nil
	} else {
		it.prev.next = it.next
		it.next.prev = it.prev
		if l.head == it {
			l.head = it.next
		}
	}
	it.Init()
}

// Next returns the item following it within its own list, wrapping from
// tail back to head. A detached item's Next is itself.
func (it *Item) Next() *Item { return it.next }

// Prev returns the item preceding it within its own list, wrapping from
// head back to tail. A detached item's Prev is itself.
func (it *Item) Prev() *Item { return it.prev }

// Remove detaches it from whatever list currently owns it, without the
// caller needing to know which list that is — the owning-list
// back-reference on the item carries that information. A no-op if it is
// already detached.
func Remove(it *Item) {
	if it.list == nil {
		return
	}
	it.list.Remove(it)
}

// insertBetween splices it into the circular ring strictly between prev
// and next, which must already be adjacent (prev.next == next).
func insertBetween(prev, it, next *Item) {
	it.prev = prev
	it.next = next
	prev.next = it
	next.prev = it
}
