package kernel

import (
	"github.com/jdoe95/gokernel/internal/kassert"
	"github.com/jdoe95/gokernel/olist"
)

// headerSize is the virtual per-block bookkeeping cost folded into every
// allocation's accounted size. Block metadata lives in the block struct
// rather than inline in the arena (there is no safe pointer arithmetic
// over a byte slice that would let a real header precede the payload),
// but the pool still charges for it so a pool's free-plus-allocated size
// always equals its total size.
const headerSize = 16

// block is one chunk of the pool, free or allocated. Free blocks live in
// pool.free (address-ordered, keyed by offset via olist's priority
// ordering); allocated blocks live in their owning thread's owned list.
// Both lists reuse the same olist.Item/List machinery.
type block struct {
	item   olist.Item // Tag = offset; Value = *block
	offset int
	size   int // total size including headerSize
	owner  *Thread
	id     MemHandle
}

func (b *block) payload() int {
	return b.size - headerSize
}

// pool is a next-fit coalescing allocator: a single
// contiguous arena, free blocks kept in one address-ordered circular
// list, each allocated block linked into its owning thread's list.
type pool struct {
	arena []byte
	free  *olist.List // address-ordered free blocks
	rover *olist.Item  // next-fit allocation cursor, inside free whenever free is non-empty

	align      int
	minPayload int

	blocks map[MemHandle]*block
	nextID MemHandle
}

func newPool(arena []byte, align, minPayload int) *pool {
	p := &pool{
		arena:      arena,
		free:       olist.New(),
		align:      align,
		minPayload: minPayload,
		blocks:     make(map[MemHandle]*block),
		nextID:     1,
	}
	first := &block{offset: 0, size: len(arena)}
	first.item.Value = first
	p.free.EnqueuePriority(&first.item, uint32(first.offset))
	p.rover = &first.item
	return p
}

func alignUp(n, align int) int {
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

func (p *pool) minBlockSize() int {
	return alignUp(p.minPayload+headerSize, p.align)
}

// allocate reserves size bytes of payload for owner, using next-fit
// scanning from the rover. Returns (0, false) if no free block is large
// enough - there is no retry, no compaction.
func (p *pool) allocate(owner *Thread, size int) (MemHandle, bool) {
	need := alignUp(size+headerSize, p.align)
	if need < p.minBlockSize() {
		need = p.minBlockSize()
	}
	if p.free.Empty() {
		return 0, false
	}

	start := p.rover
	cur := start
	for {
		b := cur.Value.(*block)
		if b.size >= need {
			return p.allocFrom(b, need, owner), true
		}
		cur = cur.Next()
		if cur == start {
			return 0, false
		}
	}
}

func (p *pool) allocFrom(b *block, need int, owner *Thread) MemHandle {
	remaining := b.size - need
	after := b.item.Next()
	olist.Remove(&b.item)

	if remaining >= p.minBlockSize() {
		tail := &block{offset: b.offset + need, size: remaining}
		tail.item.Value = tail
		p.free.EnqueuePriority(&tail.item, uint32(tail.offset))
		p.rover = &tail.item
		b.size = need
	} else {
		// Advance the rover to whatever came after b in address order.
		// If b was the only free block, the free list is now empty and
		// the rover is left as is.
		if after != &b.item {
			p.rover = after
		}
	}

	b.owner = owner
	b.id = p.nextID
	p.nextID++
	p.blocks[b.id] = b

	// With no owning thread (no thread is current yet), the block is
	// tracked only through p.blocks until it is released.
	if owner != nil {
		owner.owned.EnqueueFIFO(&b.item)
	}
	b.item.Value = b
	return b.id
}

// release returns h's block to the pool, merging with address-adjacent
// neighbours.
func (p *pool) release(h MemHandle) bool {
	b, ok := p.blocks[h]
	if !ok {
		return false
	}
	delete(p.blocks, h)

	olist.Remove(&b.item)
	b.owner = nil
	b.id = 0

	p.free.EnqueuePriority(&b.item, uint32(b.offset))
	p.rover = &b.item
	p.mergeNeighbours(b)
	return true
}

// mergeNeighbours absorbs the address-adjacent next and previous free
// blocks into b, if contiguous. Merges forward first (folding the next
// block into b), then backward (folding b into the previous block), so
// a free of a block sitting between two other free blocks coalesces all
// three in one pass.
func (p *pool) mergeNeighbours(b *block) {
	kassert.True(!b.item.Detached(), "mergeNeighbours on detached block")

	if nxt := b.item.Next(); nxt != &b.item {
		if nb, ok := nxt.Value.(*block); ok && b.offset+b.size == nb.offset {
			olist.Remove(nxt)
			b.size += nb.size
			if p.rover == nxt {
				p.rover = &b.item
			}
		}
	}

	if prv := b.item.Prev(); prv != &b.item {
		if pb, ok := prv.Value.(*block); ok && pb.offset+pb.size == b.offset {
			olist.Remove(&b.item)
			pb.size += b.size
			if p.rover == &b.item {
				p.rover = &pb.item
			}
		}
	}
}

// bytes returns the payload slice backing h, or nil if h is stale.
func (p *pool) bytes(h MemHandle) []byte {
	b, ok := p.blocks[h]
	if !ok {
		return nil
	}
	start := b.offset + headerSize
	return p.arena[start : start+b.payload()]
}

// BlockInfo describes one allocated block.
type BlockInfo struct {
	Size  int
	Owner *Thread
}

func (p *pool) blockInfo(h MemHandle) (BlockInfo, bool) {
	b, ok := p.blocks[h]
	if !ok {
		return BlockInfo{}, false
	}
	return BlockInfo{Size: b.payload(), Owner: b.owner}, true
}

// PoolInfo describes the pool's overall occupancy.
type PoolInfo struct {
	Size    int
	Free    int
	Largest int
}

func (p *pool) poolInfo() PoolInfo {
	info := PoolInfo{Size: len(p.arena)}
	if p.free.Empty() {
		return info
	}
	start := p.free.Head()
	cur := start
	for {
		b := cur.Value.(*block)
		info.Free += b.size
		if b.size > info.Largest {
			info.Largest = b.size
		}
		cur = cur.Next()
		if cur == start {
			break
		}
	}
	return info
}

// ownedBytes sums the payload of every block currently owned by owner.
func (p *pool) ownedBytes(owner *Thread) int {
	if owner.owned.Empty() {
		return 0
	}
	total := 0
	start := owner.owned.Head()
	cur := start
	for {
		b := cur.Value.(*block)
		total += b.payload()
		cur = cur.Next()
		if cur == start {
			break
		}
	}
	return total
}

// reclaimAll walks owner's owned-block list, returning every block to the
// pool without per-block compaction (bulk reclamation on thread death),
// coalescing each block with its free neighbours as it goes.
func (p *pool) reclaimAll(owner *Thread) {
	for {
		item := owner.owned.Pop()
		if item == nil {
			break
		}
		b := item.Value.(*block)
		delete(p.blocks, b.id)
		b.owner = nil
		b.id = 0
		b.item.Init()
		p.free.EnqueuePriority(&b.item, uint32(b.offset))
		p.rover = &b.item
		p.mergeNeighbours(b)
	}
}
