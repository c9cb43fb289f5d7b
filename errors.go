//go:build linux

package curio

import (
	"context"
	"errors"
	"net"

	"github.com/brickingsoft/curio/pkg/aio"
	"github.com/brickingsoft/rxp/async"
)

var (
	ErrClosed           = errors.New("curio: closed")
	ErrBusy             = errors.New("curio: system busy")
	ErrNilAddr          = errors.New("curio: addr is nil")
	ErrNetworkUnmatched = errors.New("curio: network is not matched")
)

func IsClosed(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		err = opErr.Err
	}
	return errors.Is(err, ErrClosed) || aio.IsClosed(err) ||
		errors.Is(err, async.EOF) || errors.Is(err, async.UnexpectedEOF) ||
		errors.Is(err, context.Canceled) || errors.Is(err, async.UnexpectedContextFailed) ||
		errors.Is(err, async.ExecutorsClosed)
}

func IsBusy(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		err = opErr.Err
	}
	return errors.Is(err, ErrBusy) || aio.IsBusy(err)
}

func IsTimeout(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		err = opErr.Err
	}
	return aio.IsTimeout(err)
}

const (
	opDial   = "dial"
	opListen = "listen"
	opAccept = "accept"
	opRead   = "read"
	opWrite  = "write"
	opClose  = "close"
)

func newOpErr(op string, network string, laddr net.Addr, raddr net.Addr, err error) *net.OpError {
	return &net.OpError{
		Op:     op,
		Net:    network,
		Source: laddr,
		Addr:   raddr,
		Err:    err,
	}
}
