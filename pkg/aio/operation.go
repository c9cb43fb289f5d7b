//go:build linux

package aio

import (
	"syscall"
)

type Kind uint8

const (
	Nop Kind = iota
	Accept
	Connect
	Receive
	Send
	Close
	Shutdown
	Cancel
)

// Name is the syscall name carried by completion errors.
func (kind Kind) Name() string {
	switch kind {
	case Nop:
		return "nop"
	case Accept:
		return "accept4"
	case Connect:
		return "connect"
	case Receive:
		return "recv"
	case Send:
		return "send"
	case Close:
		return "close"
	case Shutdown:
		return "shutdown"
	case Cancel:
		return "async_cancel"
	default:
		return "unknown"
	}
}

// Result is the outcome of one completed operation. N carries the cqe
// result (bytes moved, or the accepted socket).
type Result struct {
	N     int
	Flags uint32
	Err   error
}

// request is everything submit needs to prepare one sqe. Pointer fields
// move into the owning slot so the kernel-visible memory outlives the
// caller.
type request struct {
	kind    Kind
	fd      int
	buf     *Buffer
	addr    *syscall.RawSockaddrAny
	addrLen *uint32
	saLen   uint64
	how     int
}
