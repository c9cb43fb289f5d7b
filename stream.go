//go:build linux

package curio

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brickingsoft/curio/pkg/aio"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
)

func newStream(network string, handle *aio.Handle, laddr net.Addr, raddr net.Addr) *Stream {
	return &Stream{
		network: network,
		handle:  handle,
		laddr:   laddr,
		raddr:   raddr,
	}
}

// Stream is a tcp connection whose reads and writes run through the
// shared driver. It implements net.Conn.
type Stream struct {
	network       string
	handle        *aio.Handle
	laddr         net.Addr
	raddr         net.Addr
	readDeadline  atomic.Int64
	writeDeadline atomic.Int64
	closed        atomic.Bool
}

func (s *Stream) LocalAddr() net.Addr {
	return s.laddr
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.raddr
}

func (s *Stream) SetDeadline(t time.Time) error {
	_ = s.SetReadDeadline(t)
	return s.SetWriteDeadline(t)
}

func (s *Stream) SetReadDeadline(t time.Time) error {
	s.readDeadline.Store(deadlineNanos(t))
	return nil
}

func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.writeDeadline.Store(deadlineNanos(t))
	return nil
}

func deadlineNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func opContext(deadline int64) (context.Context, context.CancelFunc) {
	if deadline == 0 {
		return context.Background(), nil
	}
	return context.WithDeadline(context.Background(), time.Unix(0, deadline))
}

func (s *Stream) Read(p []byte) (n int, err error) {
	if s.closed.Load() {
		err = newOpErr(opRead, s.network, s.laddr, s.raddr, ErrClosed)
		return
	}
	if len(p) == 0 {
		return
	}
	ctx, cancel := opContext(s.readDeadline.Load())
	if cancel != nil {
		defer cancel()
	}
	for {
		f, submitErr := s.handle.Receive(p)
		if submitErr != nil {
			if aio.IsBusy(submitErr) {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			err = newOpErr(opRead, s.network, s.laddr, s.raddr, submitErr)
			return
		}
		r, awaitErr := f.Await(ctx)
		if awaitErr != nil {
			err = newOpErr(opRead, s.network, s.laddr, s.raddr, awaitErr)
			return
		}
		if r.N == 0 {
			err = io.EOF
			return
		}
		n = r.N
		return
	}
}

func (s *Stream) Write(p []byte) (n int, err error) {
	if s.closed.Load() {
		err = newOpErr(opWrite, s.network, s.laddr, s.raddr, ErrClosed)
		return
	}
	ctx, cancel := opContext(s.writeDeadline.Load())
	if cancel != nil {
		defer cancel()
	}
	for n < len(p) {
		f, submitErr := s.handle.Send(p[n:])
		if submitErr != nil {
			if aio.IsBusy(submitErr) {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			err = newOpErr(opWrite, s.network, s.laddr, s.raddr, submitErr)
			return
		}
		r, awaitErr := f.Await(ctx)
		if awaitErr != nil {
			err = newOpErr(opWrite, s.network, s.laddr, s.raddr, awaitErr)
			return
		}
		n += r.N
	}
	return
}

// CloseRead shuts the receiving half down, the peer sees EOF on write.
func (s *Stream) CloseRead() error {
	return s.shutdown(syscall.SHUT_RD)
}

// CloseWrite shuts the sending half down, the peer sees EOF on read.
func (s *Stream) CloseWrite() error {
	return s.shutdown(syscall.SHUT_WR)
}

func (s *Stream) shutdown(how int) (err error) {
	if s.closed.Load() {
		err = newOpErr(opClose, s.network, s.laddr, s.raddr, ErrClosed)
		return
	}
	f, submitErr := s.handle.Shutdown(how)
	if submitErr != nil {
		err = newOpErr(opClose, s.network, s.laddr, s.raddr, submitErr)
		return
	}
	if r, awaitErr := f.Await(context.Background()); awaitErr != nil {
		err = newOpErr(opClose, s.network, s.laddr, s.raddr, awaitErr)
	} else if r.Err != nil {
		err = newOpErr(opClose, s.network, s.laddr, s.raddr, r.Err)
	}
	return
}

func (s *Stream) Close() (err error) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if f, submitErr := s.handle.Close(); submitErr != nil {
		err = syscall.Close(s.handle.FD())
	} else {
		_, err = f.Await(context.Background())
	}
	if unpinErr := Unpin(); unpinErr != nil && err == nil {
		err = unpinErr
	}
	if err != nil {
		err = newOpErr(opClose, s.network, s.laddr, s.raddr, err)
	}
	return
}

// ReadFuture resolves with the byte count read into p. p must stay
// untouched until the future completes.
func (s *Stream) ReadFuture(ctx context.Context, p []byte) (future async.Future[int]) {
	ctx = rxp.With(ctx, Executors())
	promise, promiseErr := async.Make[int](ctx)
	if promiseErr != nil {
		future = async.FailedImmediately[int](ctx, promiseErr)
		return
	}
	go func() {
		n, err := s.Read(p)
		if err != nil {
			promise.Fail(err)
			return
		}
		promise.Succeed(n)
	}()
	future = promise.Future()
	return
}

// WriteFuture resolves with the byte count written once all of p went out.
func (s *Stream) WriteFuture(ctx context.Context, p []byte) (future async.Future[int]) {
	ctx = rxp.With(ctx, Executors())
	promise, promiseErr := async.Make[int](ctx)
	if promiseErr != nil {
		future = async.FailedImmediately[int](ctx, promiseErr)
		return
	}
	go func() {
		n, err := s.Write(p)
		if err != nil {
			promise.Fail(err)
			return
		}
		promise.Succeed(n)
	}()
	future = promise.Future()
	return
}
