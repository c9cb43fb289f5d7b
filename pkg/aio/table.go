//go:build linux

package aio

import (
	"fmt"
	"sync"
	"syscall"
)

const (
	statusIdle uint8 = iota
	statusSubmitted
	statusCompleted
	statusOrphaned
)

// slot is one table entry. All fields are guarded by the table mutex; the
// generation makes recycled indexes distinguishable so a completion can
// never land on a successor operation.
type slot struct {
	generation uint32
	status     uint8
	kind       Kind
	fd         int
	buf        *Buffer
	addr       *syscall.RawSockaddrAny
	addrLen    *uint32
	result     Result
	waker      Waker
}

func packID(index uint32, generation uint32) uint64 {
	return uint64(index)<<32 | uint64(generation)
}

func splitID(id uint64) (index uint32, generation uint32) {
	return uint32(id >> 32), uint32(id)
}

// NewTable sizes the slab once, slots are never reallocated so pointers
// into them stay valid while the kernel holds them.
func NewTable(size int) *Table {
	t := &Table{
		slots: make([]slot, size),
		free:  make([]uint32, 0, size),
	}
	for i := size - 1; i >= 0; i-- {
		t.slots[i].generation = 1
		t.free = append(t.free, uint32(i))
	}
	return t
}

// Table is the generation tagged operation slab. Idle slots come from the
// free list; a slot walks Submitted, then either Completed (consumed by
// the owning future) or Orphaned (the future was dropped first, the drain
// side reaps it when the kernel answers).
type Table struct {
	mu       sync.Mutex
	slots    []slot
	free     []uint32
	inflight int
}

func (t *Table) Cap() int {
	return len(t.slots)
}

// Occupied counts slots not on the free list.
func (t *Table) Occupied() int {
	t.mu.Lock()
	n := len(t.slots) - len(t.free)
	t.mu.Unlock()
	return n
}

// Inflight counts operations the kernel still owes a completion for.
func (t *Table) Inflight() int {
	t.mu.Lock()
	n := t.inflight
	t.mu.Unlock()
	return n
}

// acquire takes a free slot for req and returns its id. ok is false when
// the table is exhausted, which is flow control, not failure.
func (t *Table) acquire(req request) (id uint64, ok bool) {
	t.mu.Lock()
	if len(t.free) == 0 {
		t.mu.Unlock()
		return
	}
	index := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	s := &t.slots[index]
	s.status = statusSubmitted
	s.kind = req.kind
	s.fd = req.fd
	s.buf = req.buf
	s.addr = req.addr
	s.addrLen = req.addrLen
	s.result = Result{}
	s.waker = nil
	t.inflight++
	id = packID(index, s.generation)
	ok = true
	t.mu.Unlock()
	return
}

// abort returns a just acquired slot whose sqe could not be placed. Only
// legal before the id ever reached the kernel.
func (t *Table) abort(id uint64) {
	t.mu.Lock()
	index, generation := splitID(id)
	s := t.lookup(index, generation)
	if s.status != statusSubmitted {
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: abort of operation in state %d", s.status))
	}
	t.inflight--
	t.release(index, s)
	t.mu.Unlock()
}

// complete records the kernel answer for id and returns the waker to fire,
// if one was registered. An orphaned slot is reaped here, its buffer only
// now stops being kernel-visible.
func (t *Table) complete(id uint64, res int32, flags uint32) (w Waker) {
	t.mu.Lock()
	index, generation := splitID(id)
	s := t.lookup(index, generation)
	switch s.status {
	case statusSubmitted:
		s.status = statusCompleted
		if res < 0 {
			s.result = Result{Err: completionError(s.kind.Name(), res)}
		} else {
			s.result = Result{N: int(res), Flags: flags}
		}
		w = s.waker
		s.waker = nil
		t.inflight--
	case statusOrphaned:
		t.inflight--
		t.release(index, s)
	default:
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: completion for operation in state %d", s.status))
	}
	t.mu.Unlock()
	return
}

// consume hands the result to the owning future and frees the slot. done
// is false while the operation is still in flight. The returned buffer and
// address belong to the caller.
func (t *Table) consume(id uint64) (r Result, buf *Buffer, addr *syscall.RawSockaddrAny, done bool) {
	t.mu.Lock()
	index, generation := splitID(id)
	s := t.lookup(index, generation)
	switch s.status {
	case statusSubmitted:
	case statusCompleted:
		r = s.result
		buf = s.buf
		addr = s.addr
		s.buf = nil
		s.addr = nil
		t.release(index, s)
		done = true
	default:
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: consume of operation in state %d", s.status))
	}
	t.mu.Unlock()
	return
}

// register installs w on a pending operation, replacing any previous
// waker. completed=true means the answer arrived first and w was not
// installed, the caller consumes instead of parking.
func (t *Table) register(id uint64, w Waker) (completed bool) {
	t.mu.Lock()
	index, generation := splitID(id)
	s := t.lookup(index, generation)
	switch s.status {
	case statusSubmitted:
		s.waker = w
	case statusCompleted:
		completed = true
	default:
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: waker registration on operation in state %d", s.status))
	}
	t.mu.Unlock()
	return
}

// drop abandons the operation. A completed result is discarded on the
// spot; a pending one is orphaned and keeps its buffer until the kernel
// answers. inflight=true tells the caller a cancel is worth submitting.
func (t *Table) drop(id uint64) (inflight bool) {
	t.mu.Lock()
	index, generation := splitID(id)
	s := t.lookup(index, generation)
	switch s.status {
	case statusSubmitted:
		s.status = statusOrphaned
		s.waker = nil
		inflight = true
	case statusCompleted:
		t.release(index, s)
	default:
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: drop of operation in state %d", s.status))
	}
	t.mu.Unlock()
	return
}

// failPending finishes every pending operation with err. Used at shutdown
// when no more completions will be drained; fire the returned wakers after
// the table settles.
func (t *Table) failPending(err error) (wakers []Waker) {
	t.mu.Lock()
	for i := range t.slots {
		s := &t.slots[i]
		switch s.status {
		case statusSubmitted:
			s.status = statusCompleted
			s.result = Result{Err: err}
			if s.waker != nil {
				wakers = append(wakers, s.waker)
				s.waker = nil
			}
			t.inflight--
		case statusOrphaned:
			t.inflight--
			t.release(uint32(i), s)
		default:
		}
	}
	t.mu.Unlock()
	return
}

// lookup resolves id under the mutex. A generation mismatch means the
// kernel answered an id this table never issued or already recycled;
// memory safety is gone, so crash loudly.
func (t *Table) lookup(index uint32, generation uint32) *slot {
	if int(index) >= len(t.slots) {
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: operation index %d out of range", index))
	}
	s := &t.slots[index]
	if s.generation != generation || s.status == statusIdle {
		t.mu.Unlock()
		panic(fmt.Sprintf("aio: stale operation id %d", packID(index, generation)))
	}
	return s
}

// release recycles a slot under the mutex, bumping the generation and
// skipping zero so a packed id can never collide with the reserved
// internal user data.
func (t *Table) release(index uint32, s *slot) {
	releaseBuffer(s.buf)
	s.buf = nil
	s.addr = nil
	s.addrLen = nil
	s.waker = nil
	s.result = Result{}
	s.status = statusIdle
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	t.free = append(t.free, index)
}
