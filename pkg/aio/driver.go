//go:build linux

// Package aio drives socket operations through io_uring. Submissions take
// a generation tagged slot in the operation table, completions resolve
// futures by id; buffers move with the operation so dropping a future
// never races the kernel.
package aio

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/curio/pkg/iouring"
	"github.com/brickingsoft/curio/pkg/kernel"
	"github.com/brickingsoft/curio/pkg/process"
	"github.com/brickingsoft/curio/pkg/semaphores"
	"github.com/brickingsoft/errors"
)

// New builds a driver around one io_uring instance. Operations need the
// kernel features of 5.19, older kernels get ErrUnsupported.
func New(options ...Option) (d *Driver, err error) {
	if !kernel.Enable(5, 19, 0) {
		err = errors.From(ErrUnsupported)
		return
	}
	opts := Options{DrainAffinity: -1}
	for _, option := range options {
		option(&opts)
	}
	if opts.Entries == 0 {
		opts.Entries = iouring.DefaultEntries
	}
	if opts.TableSize <= 0 {
		opts.TableSize = int(opts.Entries) * 2
	}
	if opts.DrainBatch <= 0 {
		opts.DrainBatch = 256
	}
	if opts.IdleHeartbeat <= 0 {
		opts.IdleHeartbeat = 500 * time.Millisecond
	}
	ringOptions := []iouring.Option{
		iouring.WithEntries(opts.Entries),
		iouring.WithFlags(opts.Flags),
	}
	if opts.Flags&iouring.SetupSQPoll != 0 && opts.SQThreadIdle > 0 {
		ringOptions = append(ringOptions, iouring.WithSQThreadIdle(uint32(opts.SQThreadIdle.Milliseconds())))
	}
	ring, ringErr := iouring.New(ringOptions...)
	if ringErr != nil {
		err = errors.New("aio: driver setup failed", errors.WithWrap(ringErr))
		return
	}
	idle, idleErr := semaphores.New(opts.IdleHeartbeat)
	if idleErr != nil {
		_ = ring.Close()
		err = errors.New("aio: driver setup failed", errors.WithWrap(idleErr))
		return
	}
	d = &Driver{
		ring:     ring,
		table:    NewTable(opts.TableSize),
		idle:     idle,
		curve:    opts.WaitCurve,
		batch:    opts.DrainBatch,
		affinity: opts.DrainAffinity,
		cqes:     make([]*iouring.CompletionQueueEvent, opts.DrainBatch),
	}
	return
}

// Driver submits operations into the ring and retires their completions,
// either eagerly via Drain or from the background loop begun by Start.
type Driver struct {
	ring     *iouring.Ring
	table    *Table
	idle     *semaphores.Semaphores
	curve    Curve
	batch    int
	affinity int

	sqMu    sync.Mutex
	drainMu sync.Mutex
	cqes    []*iouring.CompletionQueueEvent

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started atomic.Bool
	closed  atomic.Bool
}

func (d *Driver) Handle(fd int) *Handle {
	return &Handle{driver: d, fd: fd}
}

// Fd is the ring file descriptor.
func (d *Driver) Fd() int {
	return d.ring.Fd()
}

func (d *Driver) Occupied() int {
	return d.table.Occupied()
}

func (d *Driver) Inflight() int {
	return d.table.Inflight()
}

// submit places one sqe. ErrBusy means nothing was placed, the caller owns
// the retry; once the id is out the slot owns every pointer in req.
func (d *Driver) submit(req request) (id uint64, err error) {
	if d.closed.Load() {
		releaseBuffer(req.buf)
		err = errors.From(ErrClosed)
		return
	}
	d.sqMu.Lock()
	if d.closed.Load() {
		d.sqMu.Unlock()
		releaseBuffer(req.buf)
		err = errors.From(ErrClosed)
		return
	}
	var ok bool
	id, ok = d.table.acquire(req)
	if !ok {
		d.sqMu.Unlock()
		releaseBuffer(req.buf)
		err = errors.From(ErrBusy)
		return
	}
	sqe := d.ring.GetSQE()
	if sqe == nil {
		_, _ = d.ring.Submit()
		sqe = d.ring.GetSQE()
	}
	if sqe == nil {
		d.table.abort(id)
		d.sqMu.Unlock()
		id = 0
		err = errors.From(ErrBusy)
		return
	}
	prepare(sqe, req)
	sqe.SetData64(id)
	// EAGAIN leaves the entry flushed but unconsumed; the next enter,
	// here or in the background loop, pushes it again.
	_, _ = d.ring.Submit()
	d.sqMu.Unlock()
	d.idle.Signal()
	return
}

func prepare(sqe *iouring.SubmissionQueueEntry, req request) {
	switch req.kind {
	case Nop:
		sqe.PrepareNop()
	case Accept:
		sqe.PrepareAccept(req.fd, req.addr, req.addrLen, syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC)
	case Connect:
		sqe.PrepareConnect(req.fd, req.addr, req.saLen)
	case Receive:
		var p uintptr
		if req.buf.Len() > 0 {
			p = uintptr(unsafe.Pointer(&req.buf.b[0]))
		}
		sqe.PrepareRecv(req.fd, p, uint32(req.buf.Len()), 0)
	case Send:
		var p uintptr
		if req.buf.Len() > 0 {
			p = uintptr(unsafe.Pointer(&req.buf.b[0]))
		}
		sqe.PrepareSend(req.fd, p, uint32(req.buf.Len()), 0)
	case Close:
		sqe.PrepareClose(req.fd)
	case Shutdown:
		sqe.PrepareShutdown(req.fd, req.how)
	default:
		sqe.PrepareNop()
	}
}

// cancelOp asks the kernel to abort id. Best effort: without a free sqe
// the completion simply arrives on its own schedule.
func (d *Driver) cancelOp(id uint64) {
	if d.closed.Load() {
		return
	}
	d.sqMu.Lock()
	if d.closed.Load() {
		d.sqMu.Unlock()
		return
	}
	sqe := d.ring.GetSQE()
	if sqe == nil {
		_, _ = d.ring.Submit()
		sqe = d.ring.GetSQE()
	}
	if sqe != nil {
		sqe.PrepareCancel64(id, 0)
		sqe.SetData64(0)
		_, _ = d.ring.Submit()
	}
	d.sqMu.Unlock()
	d.idle.Signal()
}

// cancelFd aborts every operation pending on fd, used ahead of close so
// futures blocked on the descriptor resolve instead of outliving it.
func (d *Driver) cancelFd(fd int) {
	if d.closed.Load() {
		return
	}
	d.sqMu.Lock()
	if d.closed.Load() {
		d.sqMu.Unlock()
		return
	}
	sqe := d.ring.GetSQE()
	if sqe == nil {
		_, _ = d.ring.Submit()
		sqe = d.ring.GetSQE()
	}
	if sqe != nil {
		sqe.PrepareCancelFd(fd, iouring.AsyncCancelAll)
		sqe.SetData64(0)
		_, _ = d.ring.Submit()
	}
	d.sqMu.Unlock()
	d.idle.Signal()
}

// Drain retires the completions available right now without blocking and
// fires their wakers. The eager mode companion to Start.
func (d *Driver) Drain() int {
	d.sqMu.Lock()
	if d.closed.Load() {
		d.sqMu.Unlock()
		return 0
	}
	_, _ = d.ring.Submit()
	d.sqMu.Unlock()
	return d.drain()
}

func (d *Driver) drain() (n int) {
	d.drainMu.Lock()
	if d.closed.Load() {
		d.drainMu.Unlock()
		return
	}
	var wakers []Waker
	n, wakers = d.retire()
	d.drainMu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
	return
}

// retire completes the cqes available right now. drainMu must be held.
func (d *Driver) retire() (n int, wakers []Waker) {
	peeked := d.ring.PeekBatchCQE(d.cqes)
	if peeked == 0 {
		return
	}
	for i := uint32(0); i < peeked; i++ {
		cqe := d.cqes[i]
		if cqe.UserData == 0 {
			// internal cancel sqe, nothing owns it
			continue
		}
		if w := d.table.complete(cqe.UserData, cqe.Res, cqe.Flags); w != nil {
			wakers = append(wakers, w)
		}
	}
	d.ring.CQAdvance(peeked)
	n = int(peeked)
	return
}

// Start begins the background drain. It runs until ctx is done or
// Shutdown is called; starting twice is a no-op.
func (d *Driver) Start(ctx context.Context) {
	if d.closed.Load() || !d.started.CompareAndSwap(false, true) {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.waiting(ctx)
}

func (d *Driver) waiting(ctx context.Context) {
	defer d.wg.Done()
	if d.affinity >= 0 {
		runtime.LockOSThread()
		if err := process.SetCPUAffinity(d.affinity); err != nil {
			runtime.UnlockOSThread()
		} else {
			defer runtime.UnlockOSThread()
		}
	}
	tr := newTransmissioner(d.curve)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.sqMu.Lock()
		_, _ = d.ring.Submit()
		d.sqMu.Unlock()
		if n := d.drain(); n > 0 {
			if n >= d.batch {
				tr.Up()
			}
			continue
		}
		inflight := d.table.Inflight()
		if inflight == 0 {
			_ = d.idle.Wait(ctx)
			continue
		}
		waitNr, ts := tr.Wait()
		if waitNr > uint32(inflight) {
			waitNr = uint32(inflight)
		}
		switch waitErr := d.ring.WaitCQEs(waitNr, &ts, nil); waitErr {
		case nil:
		case syscall.ETIME:
			tr.Down()
		case syscall.EINTR:
		default:
			if d.closed.Load() {
				return
			}
			tr.Down()
		}
	}
}

// Shutdown stops the background drain, closes the ring and fails every
// still pending operation with ErrClosed. Safe to call more than once.
func (d *Driver) Shutdown() (err error) {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.idle.Signal()
	d.wg.Wait()
	// both locks fence late submits and drains: anyone who raced past the
	// closed check queues here and then observes it, never the unmapped ring
	d.sqMu.Lock()
	d.drainMu.Lock()
	_, wakers := d.retire()
	err = d.ring.Close()
	d.drainMu.Unlock()
	d.sqMu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
	_ = d.idle.Close()
	for _, w := range d.table.failPending(errors.From(ErrClosed)) {
		w.Wake()
	}
	return
}

func (d *Driver) Close() error {
	return d.Shutdown()
}
