//go:build linux

package curio

import (
	"context"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brickingsoft/curio/pkg/aio"
	"github.com/brickingsoft/curio/pkg/sys"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
)

// Listen opens a tcp listener whose accepts run through the shared
// driver.
func Listen(network string, address string) (ln *Listener, err error) {
	driver, pinErr := Pin()
	if pinErr != nil {
		err = newOpErr(opListen, network, nil, nil, pinErr)
		return
	}
	sock, laddr, lnErr := sys.ListenTCP(network, address)
	if lnErr != nil {
		_ = Unpin()
		err = newOpErr(opListen, network, nil, nil, lnErr)
		return
	}
	ln = &Listener{
		network: network,
		handle:  driver.Handle(sock),
		addr:    laddr,
	}
	return
}

type Listener struct {
	network string
	handle  *aio.Handle
	addr    *net.TCPAddr
	closed  atomic.Bool
}

func (ln *Listener) Addr() net.Addr {
	return ln.addr
}

func (ln *Listener) Accept() (s *Stream, err error) {
	for {
		if ln.closed.Load() {
			err = newOpErr(opAccept, ln.network, ln.addr, nil, ErrClosed)
			return
		}
		f, submitErr := ln.handle.Accept()
		if submitErr != nil {
			if aio.IsBusy(submitErr) {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			err = newOpErr(opAccept, ln.network, ln.addr, nil, submitErr)
			return
		}
		r, awaitErr := f.Await(context.Background())
		if awaitErr != nil {
			if ln.closed.Load() {
				awaitErr = ErrClosed
			}
			err = newOpErr(opAccept, ln.network, ln.addr, nil, awaitErr)
			return
		}
		driver, pinErr := Pin()
		if pinErr != nil {
			_ = syscall.Close(r.N)
			err = newOpErr(opAccept, ln.network, ln.addr, nil, pinErr)
			return
		}
		s = newStream(ln.network, driver.Handle(r.N), ln.addr, f.Addr())
		return
	}
}

// AcceptFuture resolves on the executors with the next accepted stream.
func (ln *Listener) AcceptFuture(ctx context.Context) (future async.Future[*Stream]) {
	ctx = rxp.With(ctx, Executors())
	promise, promiseErr := async.Make[*Stream](ctx)
	if promiseErr != nil {
		future = async.FailedImmediately[*Stream](ctx, promiseErr)
		return
	}
	go func() {
		s, err := ln.Accept()
		if err != nil {
			promise.Fail(err)
			return
		}
		promise.Succeed(s)
	}()
	future = promise.Future()
	return
}

func (ln *Listener) Close() (err error) {
	if !ln.closed.CompareAndSwap(false, true) {
		return
	}
	if f, submitErr := ln.handle.Close(); submitErr != nil {
		err = syscall.Close(ln.handle.FD())
	} else {
		_, err = f.Await(context.Background())
	}
	if unpinErr := Unpin(); unpinErr != nil && err == nil {
		err = unpinErr
	}
	if err != nil {
		err = newOpErr(opClose, ln.network, ln.addr, nil, err)
	}
	return
}
