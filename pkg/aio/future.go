//go:build linux

package aio

import (
	"context"
	"net"
	"syscall"

	"github.com/brickingsoft/curio/pkg/sys"
	"github.com/brickingsoft/errors"
)

// Future is the caller side of one submitted operation. It is owned by a
// single goroutine; the result can be taken exactly once, by Poll, Await
// or a discarding Drop.
type Future struct {
	driver *Driver
	id     uint64
	kind   Kind
	dst    []byte
	addr   *net.TCPAddr
	done   bool
}

func (f *Future) Kind() Kind {
	return f.kind
}

// Poll consumes the completion when one is present. Otherwise it installs
// w, replacing any previous waker, and re-checks so an answer landing
// between the check and the registration cannot be missed.
func (f *Future) Poll(w Waker) (r Result, done bool) {
	if f.done {
		r = Result{Err: errors.From(ErrConsumed)}
		done = true
		return
	}
	res, buf, addr, ok := f.driver.table.consume(f.id)
	if !ok && w != nil {
		if f.driver.table.register(f.id, w) {
			res, buf, addr, ok = f.driver.table.consume(f.id)
		}
	}
	if !ok {
		return
	}
	f.done = true
	f.finish(&res, buf, addr)
	r = res
	done = true
	return
}

func (f *Future) finish(r *Result, buf *Buffer, addr *syscall.RawSockaddrAny) {
	if buf != nil {
		if f.kind == Receive && r.Err == nil && f.dst != nil {
			n := r.N
			if n > buf.Len() {
				n = buf.Len()
			}
			r.N = copy(f.dst, buf.b[:n])
		}
		releaseBuffer(buf)
	}
	if f.kind == Accept && r.Err == nil && addr != nil {
		if sa, saErr := sys.RawSockaddrAnyToSockaddr(addr); saErr == nil {
			f.addr = sys.SockaddrToTCPAddr(sa)
		}
	}
}

// Addr is the remote address of a resolved accept.
func (f *Future) Addr() *net.TCPAddr {
	return f.addr
}

// Await drives Poll with a parked waker until the operation resolves.
// When ctx ends first the operation is dropped and its eventual result
// discarded.
func (f *Future) Await(ctx context.Context) (r Result, err error) {
	w := newReadyWaker()
	for {
		res, done := f.Poll(w)
		if done {
			r = res
			err = res.Err
			return
		}
		select {
		case <-ctx.Done():
			f.Drop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = ErrTimeout
			} else {
				err = ErrCanceled
			}
			return
		case <-w.ch:
		}
	}
}

// Drop abandons the future. A pending operation is orphaned: its memory
// stays with the slot until the kernel answers, and the answer is thrown
// away. A best effort kernel cancel shortens the wait.
func (f *Future) Drop() {
	if f.done {
		return
	}
	f.done = true
	if f.driver.table.drop(f.id) {
		f.driver.cancelOp(f.id)
	}
}
