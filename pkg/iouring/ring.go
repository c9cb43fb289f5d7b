//go:build linux

package iouring

import (
	"errors"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

type submissionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32
	sqes        *SubmissionQueueEntry

	sqeHead uint32
	sqeTail uint32

	ringSize uintptr
	ringPtr  unsafe.Pointer
}

type completionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	overflow    *uint32
	cqes        *CompletionQueueEvent

	ringSize uintptr
	ringPtr  unsafe.Pointer
}

func New(options ...Option) (ring *Ring, err error) {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	entries := opts.Entries
	if entries == 0 {
		entries = DefaultEntries
	}
	if entries > MaxEntries {
		err = errors.New("iouring: entries too big")
		return
	}
	entries = roundupPow2(entries)

	p := &params{
		flags:        opts.Flags,
		sqThreadCPU:  opts.SQThreadCPU,
		sqThreadIdle: opts.SQThreadIdle,
		wqFd:         opts.AttachWQFd,
	}

	ring = &Ring{
		sq: &submissionQueue{},
		cq: &completionQueue{},
	}
	if err = ring.setup(entries, p); err != nil {
		ring = nil
		return
	}
	return
}

type Ring struct {
	sq       *submissionQueue
	cq       *completionQueue
	flags    uint32
	features uint32
	ringFd   int
}

func (ring *Ring) setup(entries uint32, p *params) (err error) {
	fd, _, errno := syscall.Syscall(sysSetup, uintptr(entries), uintptr(unsafe.Pointer(p)), 0)
	runtime.KeepAlive(p)
	if errno != 0 {
		err = errno
		return
	}
	ring.ringFd = int(fd)
	ring.flags = p.flags
	ring.features = p.features

	if err = ring.mmap(p); err != nil {
		_ = syscall.Close(ring.ringFd)
		ring.ringFd = -1
		return
	}
	return
}

func (ring *Ring) mmap(p *params) (err error) {
	const (
		offSQRing int64 = 0
		offCQRing int64 = 0x8000000
		offSQEs   int64 = 0x10000000
	)
	sq, cq := ring.sq, ring.cq

	sq.ringSize = uintptr(p.sqOff.array) + uintptr(p.sqEntries)*unsafe.Sizeof(uint32(0))
	cq.ringSize = uintptr(p.cqOff.cqes) + uintptr(p.cqEntries)*unsafe.Sizeof(CompletionQueueEvent{})
	if p.features&FeatSingleMMap != 0 {
		if cq.ringSize > sq.ringSize {
			sq.ringSize = cq.ringSize
		}
		cq.ringSize = sq.ringSize
	}

	sq.ringPtr, err = mmap(sq.ringSize, ring.ringFd, offSQRing)
	if err != nil {
		return
	}
	if p.features&FeatSingleMMap != 0 {
		cq.ringPtr = sq.ringPtr
	} else {
		cq.ringPtr, err = mmap(cq.ringSize, ring.ringFd, offCQRing)
		if err != nil {
			ring.munmapRings()
			return
		}
	}

	var sqes unsafe.Pointer
	sqes, err = mmap(uintptr(p.sqEntries)*unsafe.Sizeof(SubmissionQueueEntry{}), ring.ringFd, offSQEs)
	if err != nil {
		ring.munmapRings()
		return
	}
	sq.sqes = (*SubmissionQueueEntry)(sqes)

	sq.head = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.head)))
	sq.tail = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.tail)))
	sq.ringMask = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.ringMask)))
	sq.ringEntries = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.ringEntries)))
	sq.flags = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.flags)))
	sq.dropped = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.dropped)))
	sq.array = (*uint32)(unsafe.Pointer(uintptr(sq.ringPtr) + uintptr(p.sqOff.array)))

	cq.head = (*uint32)(unsafe.Pointer(uintptr(cq.ringPtr) + uintptr(p.cqOff.head)))
	cq.tail = (*uint32)(unsafe.Pointer(uintptr(cq.ringPtr) + uintptr(p.cqOff.tail)))
	cq.ringMask = (*uint32)(unsafe.Pointer(uintptr(cq.ringPtr) + uintptr(p.cqOff.ringMask)))
	cq.ringEntries = (*uint32)(unsafe.Pointer(uintptr(cq.ringPtr) + uintptr(p.cqOff.ringEntries)))
	cq.overflow = (*uint32)(unsafe.Pointer(uintptr(cq.ringPtr) + uintptr(p.cqOff.overflow)))
	cq.cqes = (*CompletionQueueEvent)(unsafe.Pointer(uintptr(cq.ringPtr) + uintptr(p.cqOff.cqes)))
	return
}

func (ring *Ring) munmapRings() {
	sq, cq := ring.sq, ring.cq
	if sq.ringPtr != nil {
		_ = munmap(sq.ringPtr, sq.ringSize)
	}
	if cq.ringPtr != nil && cq.ringPtr != sq.ringPtr {
		_ = munmap(cq.ringPtr, cq.ringSize)
	}
	sq.ringPtr, cq.ringPtr = nil, nil
}

func (ring *Ring) Fd() int {
	return ring.ringFd
}

func (ring *Ring) Flags() uint32 {
	return ring.flags
}

func (ring *Ring) SQEntries() uint32 {
	return *ring.sq.ringEntries
}

func (ring *Ring) CQEntries() uint32 {
	return *ring.cq.ringEntries
}

// GetSQE returns the next free submission entry or nil when the submission
// ring is full (flow control, caller decides whether to flush and retry).
func (ring *Ring) GetSQE() (entry *SubmissionQueueEntry) {
	sq := ring.sq
	head := atomic.LoadUint32(sq.head)
	next := sq.sqeTail + 1
	if next-head > *sq.ringEntries {
		return
	}
	idx := sq.sqeTail & *sq.ringMask
	entry = (*SubmissionQueueEntry)(unsafe.Pointer(uintptr(unsafe.Pointer(sq.sqes)) + uintptr(idx)*unsafe.Sizeof(SubmissionQueueEntry{})))
	sq.sqeTail = next
	return
}

// flushSQ makes the locally prepared entries visible to the kernel and
// returns the number pending submission.
func (ring *Ring) flushSQ() uint32 {
	sq := ring.sq
	mask := *sq.ringMask
	tail := atomic.LoadUint32(sq.tail)
	toSubmit := sq.sqeTail - sq.sqeHead
	for ; toSubmit > 0; toSubmit-- {
		*(*uint32)(unsafe.Pointer(uintptr(unsafe.Pointer(sq.array)) + uintptr(tail&mask)*unsafe.Sizeof(uint32(0)))) = sq.sqeHead & mask
		tail++
		sq.sqeHead++
	}
	atomic.StoreUint32(sq.tail, tail)
	return tail - atomic.LoadUint32(sq.head)
}

func (ring *Ring) sqNeedsEnter(submitted uint32, flags *uint32) bool {
	if ring.flags&SetupSQPoll == 0 {
		return submitted != 0
	}
	if atomic.LoadUint32(ring.sq.flags)&SQNeedWakeup != 0 {
		*flags |= EnterSQWakeup
		return true
	}
	return false
}

func (ring *Ring) cqNeedsFlush() bool {
	return atomic.LoadUint32(ring.sq.flags)&(SQCQOverflow|SQTaskrun) != 0
}

func (ring *Ring) enter(submitted uint32, waitNr uint32, flags uint32, arg unsafe.Pointer, argSz uintptr) (uint, error) {
	consumed, _, errno := syscall.Syscall6(
		sysEnter,
		uintptr(ring.ringFd),
		uintptr(submitted),
		uintptr(waitNr),
		uintptr(flags),
		uintptr(arg),
		argSz,
	)
	if errno != 0 {
		return 0, errno
	}
	return uint(consumed), nil
}

// Submit flushes prepared entries into the kernel without waiting for
// completions.
func (ring *Ring) Submit() (n uint, err error) {
	return ring.submit(ring.flushSQ(), 0)
}

func (ring *Ring) submit(submitted uint32, waitNr uint32) (n uint, err error) {
	cqNeedsEnter := waitNr != 0 || ring.cqNeedsFlush()
	var flags uint32
	if ring.sqNeedsEnter(submitted, &flags) || cqNeedsEnter {
		if cqNeedsEnter {
			flags |= EnterGetEvents
		}
		n, err = ring.enter(submitted, waitNr, flags, nil, 0)
		return
	}
	n = uint(submitted)
	return
}

// WaitCQEs blocks until at least waitNr completions are available or the
// timeout expires; prepared entries must already be flushed with Submit.
// A nil timeout waits without bound. Returns syscall.ETIME on expiry.
func (ring *Ring) WaitCQEs(waitNr uint32, ts *syscall.Timespec, sigmask *unix.Sigset_t) (err error) {
	if ring.ready() >= waitNr {
		return
	}
	flags := EnterGetEvents
	if ts == nil {
		_, err = ring.enter(0, waitNr, flags, unsafe.Pointer(sigmask), nsig/8)
		return
	}
	if ring.features&FeatExtArg == 0 {
		err = syscall.EOPNOTSUPP
		return
	}
	arg := getEventsArg{
		sigMask:   uint64(uintptr(unsafe.Pointer(sigmask))),
		sigMaskSz: nsig / 8,
		ts:        uint64(uintptr(unsafe.Pointer(ts))),
	}
	flags |= EnterExtArg
	_, err = ring.enter(0, waitNr, flags, unsafe.Pointer(&arg), unsafe.Sizeof(arg))
	runtime.KeepAlive(&arg)
	runtime.KeepAlive(ts)
	return
}

func (ring *Ring) ready() uint32 {
	return atomic.LoadUint32(ring.cq.tail) - atomic.LoadUint32(ring.cq.head)
}

// PeekBatchCQE fills cqes with pointers to available completion events
// without consuming them; follow with CQAdvance once handled.
func (ring *Ring) PeekBatchCQE(cqes []*CompletionQueueEvent) (n uint32) {
	cq := ring.cq
	ready := ring.ready()
	if ready == 0 {
		if ring.cqNeedsFlush() {
			_, _ = ring.enter(0, 0, EnterGetEvents, nil, 0)
			ready = ring.ready()
		}
		if ready == 0 {
			return
		}
	}
	n = uint32(len(cqes))
	if n > ready {
		n = ready
	}
	head := atomic.LoadUint32(cq.head)
	mask := *cq.ringMask
	for i := uint32(0); i < n; i++ {
		cqes[i] = (*CompletionQueueEvent)(unsafe.Pointer(uintptr(unsafe.Pointer(cq.cqes)) + uintptr((head+i)&mask)*unsafe.Sizeof(CompletionQueueEvent{})))
	}
	return
}

// CQAdvance hands n consumed completion events back to the kernel.
func (ring *Ring) CQAdvance(n uint32) {
	atomic.StoreUint32(ring.cq.head, atomic.LoadUint32(ring.cq.head)+n)
}

func (ring *Ring) Close() (err error) {
	sq := ring.sq
	if sq.sqes != nil {
		_ = munmap(unsafe.Pointer(sq.sqes), uintptr(*sq.ringEntries)*unsafe.Sizeof(SubmissionQueueEntry{}))
		sq.sqes = nil
	}
	ring.munmapRings()
	if ring.ringFd != -1 {
		err = syscall.Close(ring.ringFd)
		ring.ringFd = -1
	}
	return
}
