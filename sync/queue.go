package sync

import (
	"github.com/jdoe95/gokernel/internal/kiface"
	"github.com/jdoe95/gokernel/kernel"
	"github.com/jdoe95/gokernel/olist"
)

// Queue is a bounded byte queue: a ring buffer plus independent read and
// write indices, and two priority-ordered waiter queues - one for
// threads blocked on space (writers), one for threads blocked on data
// (readers). The buffer holds size-1 usable bytes; one slot is always
// left empty so that read == write unambiguously means "empty".
type Queue struct {
	k     *kernel.Kernel
	buf   []byte
	read  int
	write int

	waitRead  *olist.List
	waitWrite *olist.List
}

// NewQueue creates a queue backed by a size-byte ring buffer, of which
// size-1 bytes are usable.
func NewQueue(k *kernel.Kernel, size int) *Queue {
	return &Queue{
		k:         k,
		buf:       make([]byte, size),
		waitRead:  olist.New(),
		waitWrite: olist.New(),
	}
}

// Delete fails every pending send, receive, and peek with false. The
// Queue must not be used afterward.
func (q *Queue) Delete() {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	q.k.WakeAllDenied(q.waitRead)
	q.k.WakeAllDenied(q.waitWrite)
}

// GetSize returns the buffer's total size, including the always-unused slot.
func (q *Queue) GetSize() int {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	return len(q.buf)
}

// GetUsedSize returns the number of bytes currently queued.
func (q *Queue) GetUsedSize() int {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	return q.usedSize()
}

// GetFreeSize returns the number of bytes that could be sent right now
// without blocking.
func (q *Queue) GetFreeSize() int {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	return q.freeSize()
}

// Reset empties the queue (read = write = 0) and re-evaluates the waiter
// queues, since emptying frees all usable space at once.
func (q *Queue) Reset() {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	q.read = 0
	q.write = 0
	q.unlockThreads()
}

// Send enqueues data at the tail, blocking until there is room for all of
// it or timeout ticks elapse (0 waits forever). There is no partial
// transfer: either every byte is queued, or none are and the call blocks
// or times out.
func (q *Queue) Send(data []byte, timeout kernel.Ticks) bool {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	if len(data) <= q.freeSize() {
		q.writeTail(data)
		q.unlockThreads()
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitQueueWrite, Data: data, Size: len(data)}
	q.k.Block(q.waitWrite, rec, timeout)
	return rec.Result
}

// SendAhead is like Send but prepends: the bytes land at the front of the
// queue, ahead of whatever is already queued, so they are the next bytes
// a reader sees.
func (q *Queue) SendAhead(data []byte, timeout kernel.Ticks) bool {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	if len(data) <= q.freeSize() {
		q.writeHead(data)
		q.unlockThreads()
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitQueueWriteAhead, Data: data, Size: len(data)}
	q.k.Block(q.waitWrite, rec, timeout)
	return rec.Result
}

// Receive dequeues len(buf) bytes into buf, advancing the read index,
// blocking until that many bytes are available or timeout ticks elapse.
func (q *Queue) Receive(buf []byte, timeout kernel.Ticks) bool {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	if len(buf) <= q.usedSize() {
		q.readOut(buf)
		q.unlockThreads()
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitQueueRead, Data: buf, Size: len(buf)}
	q.k.Block(q.waitRead, rec, timeout)
	return rec.Result
}

// Peek is like Receive but leaves the read index untouched: the bytes
// remain queued for a later Receive or Peek.
func (q *Queue) Peek(buf []byte, timeout kernel.Ticks) bool {
	q.k.EnterCritical()
	defer q.k.ExitCritical()
	if len(buf) <= q.usedSize() {
		q.peekAt(buf)
		return true
	}
	rec := &kernel.WaitRecord{Kind: kiface.WaitQueuePeek, Data: buf, Size: len(buf)}
	q.k.Block(q.waitRead, rec, timeout)
	return rec.Result
}

func (q *Queue) usedSize() int {
	if q.write >= q.read {
		return q.write - q.read
	}
	return len(q.buf) - q.read + q.write
}

func (q *Queue) freeSize() int {
	if q.read > q.write {
		return q.read - q.write - 1
	}
	return len(q.buf) - 1 - q.write + q.read
}

func (q *Queue) writeTail(data []byte) {
	write := q.write
	qsize := len(q.buf)
	for _, b := range data {
		q.buf[write] = b
		if write < qsize-1 {
			write++
		} else {
			write = 0
		}
	}
	q.write = write
}

func (q *Queue) writeHead(data []byte) {
	read := q.read
	qsize := len(q.buf)
	for i := len(data) - 1; i >= 0; i-- {
		if read > 0 {
			read--
		} else {
			read = qsize - 1
		}
		q.buf[read] = data[i]
	}
	q.read = read
}

func (q *Queue) peekAt(dst []byte) {
	read := q.read
	qsize := len(q.buf)
	for i := range dst {
		dst[i] = q.buf[read]
		if read < qsize-1 {
			read++
		} else {
			read = 0
		}
	}
}

func (q *Queue) readOut(dst []byte) {
	q.peekAt(dst)
	read := q.read + len(dst)
	qsize := len(q.buf)
	if read >= qsize {
		read -= qsize
	}
	q.read = read
}

// unlockThreads is the cross-side wake engine: it alternates between
// trying to satisfy the writer queue's head against current free space
// and the reader queue's head against current used space, each success
// potentially making room for the other side, until neither side can
// make progress. Waiter queue priority order determines who is tried
// first on each side.
func (q *Queue) unlockThreads() {
	canRead, canWrite := true, true
	for canRead || canWrite {
		if canWrite {
			if head := q.waitWrite.Head(); head != nil {
				t := head.Value.(*kernel.Thread)
				rec := t.WaitRecord()
				if rec.Size <= q.freeSize() {
					if rec.Kind == kiface.WaitQueueWriteAhead {
						q.writeHead(rec.Data)
					} else {
						q.writeTail(rec.Data)
					}
					canRead = true
					q.k.WakeOne(q.waitWrite)
				} else {
					canWrite = false
				}
			} else {
				canWrite = false
			}
		}

		if canRead {
			if head := q.waitRead.Head(); head != nil {
				t := head.Value.(*kernel.Thread)
				rec := t.WaitRecord()
				if rec.Size <= q.usedSize() {
					if rec.Kind == kiface.WaitQueuePeek {
						q.peekAt(rec.Data)
					} else {
						q.readOut(rec.Data)
					}
					canWrite = true
					q.k.WakeOne(q.waitRead)
				} else {
					canRead = false
				}
			} else {
				canRead = false
			}
		}
	}
	q.k.Reschedule()
}
