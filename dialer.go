//go:build linux

package curio

import (
	"context"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/brickingsoft/curio/pkg/aio"
	"github.com/brickingsoft/curio/pkg/sys"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
)

type Dialer struct {
	Timeout time.Duration
}

var DefaultDialer = Dialer{Timeout: 15 * time.Second}

func Dial(network string, address string) (*Stream, error) {
	return DefaultDialer.Dial(network, address)
}

func (d *Dialer) Dial(network string, address string) (s *Stream, err error) {
	addr, family, ipv6only, addrErr := sys.ResolveTCPAddr(network, address)
	if addrErr != nil {
		err = newOpErr(opDial, network, nil, nil, addrErr)
		return
	}
	driver, pinErr := Pin()
	if pinErr != nil {
		err = newOpErr(opDial, network, nil, addr, pinErr)
		return
	}
	sock, sockErr := sys.NewSocket(family, syscall.SOCK_STREAM, syscall.IPPROTO_TCP)
	if sockErr != nil {
		_ = Unpin()
		err = newOpErr(opDial, network, nil, addr, sockErr)
		return
	}
	if ipv6only {
		if setErr := syscall.SetsockoptInt(sock, syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, 1); setErr != nil {
			_ = syscall.Close(sock)
			_ = Unpin()
			err = newOpErr(opDial, network, nil, addr, setErr)
			return
		}
	}
	handle := driver.Handle(sock)

	ctx := context.Background()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	for {
		f, submitErr := handle.Connect(addr)
		if submitErr != nil {
			if aio.IsBusy(submitErr) {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			_ = syscall.Close(sock)
			_ = Unpin()
			err = newOpErr(opDial, network, nil, addr, submitErr)
			return
		}
		if _, awaitErr := f.Await(ctx); awaitErr != nil {
			_ = syscall.Close(sock)
			_ = Unpin()
			err = newOpErr(opDial, network, nil, addr, awaitErr)
			return
		}
		break
	}

	var laddr net.Addr
	if sn, snErr := syscall.Getsockname(sock); snErr == nil {
		laddr = sys.SockaddrToTCPAddr(sn)
	}
	s = newStream(network, handle, laddr, addr)
	return
}

// DialFuture resolves on the executors with the connected stream.
func (d *Dialer) DialFuture(ctx context.Context, network string, address string) (future async.Future[*Stream]) {
	ctx = rxp.With(ctx, Executors())
	promise, promiseErr := async.Make[*Stream](ctx)
	if promiseErr != nil {
		future = async.FailedImmediately[*Stream](ctx, promiseErr)
		return
	}
	go func() {
		s, err := d.Dial(network, address)
		if err != nil {
			promise.Fail(err)
			return
		}
		promise.Succeed(s)
	}()
	future = promise.Future()
	return
}

// From adopts a connected socket. The fd is duplicated, the caller keeps
// ownership of its own descriptor.
func From(fd int) (s *Stream, err error) {
	dup, what, dupErr := sys.DupCloseOnExec(fd)
	if dupErr != nil {
		err = newOpErr(opDial, "tcp", nil, nil, os.NewSyscallError(what, dupErr))
		return
	}
	driver, pinErr := Pin()
	if pinErr != nil {
		_ = syscall.Close(dup)
		err = newOpErr(opDial, "tcp", nil, nil, pinErr)
		return
	}
	var laddr, raddr net.Addr
	if sn, snErr := syscall.Getsockname(dup); snErr == nil {
		laddr = sys.SockaddrToTCPAddr(sn)
	}
	if pn, pnErr := syscall.Getpeername(dup); pnErr == nil {
		raddr = sys.SockaddrToTCPAddr(pn)
	}
	s = newStream("tcp", driver.Handle(dup), laddr, raddr)
	return
}
