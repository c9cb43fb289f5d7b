//go:build linux

package aio

import (
	"net"
	"syscall"

	"github.com/brickingsoft/curio/pkg/sys"
)

// Handle binds one file descriptor to a driver. It does not own fd beyond
// the operations submitted through it; closing goes through Close like any
// other operation.
type Handle struct {
	driver *Driver
	fd     int
}

func (h *Handle) FD() int {
	return h.fd
}

func (h *Handle) Driver() *Driver {
	return h.driver
}

func (h *Handle) future(req request) (f *Future, err error) {
	id, submitErr := h.driver.submit(req)
	if submitErr != nil {
		err = submitErr
		return
	}
	f = &Future{driver: h.driver, id: id, kind: req.kind}
	return
}

func (h *Handle) Nop() (*Future, error) {
	return h.future(request{kind: Nop, fd: -1})
}

// Receive submits a read into an owned buffer sized to dst. The bytes land
// in dst when the future resolves.
func (h *Handle) Receive(dst []byte) (f *Future, err error) {
	buf := acquireBuffer(len(dst))
	f, err = h.future(request{kind: Receive, fd: h.fd, buf: buf})
	if err != nil {
		return
	}
	f.dst = dst
	return
}

// Send copies p into an owned buffer and submits a write, so p may be
// reused as soon as Send returns.
func (h *Handle) Send(p []byte) (*Future, error) {
	buf := acquireBuffer(len(p))
	copy(buf.b, p)
	return h.future(request{kind: Send, fd: h.fd, buf: buf})
}

func (h *Handle) Connect(addr *net.TCPAddr) (f *Future, err error) {
	sa, saErr := sys.TCPAddrToSockaddr(addr)
	if saErr != nil {
		err = saErr
		return
	}
	rsa, rsaLen, rsaErr := sys.SockaddrToRawSockaddrAny(sa)
	if rsaErr != nil {
		err = rsaErr
		return
	}
	return h.future(request{kind: Connect, fd: h.fd, addr: rsa, saLen: uint64(rsaLen)})
}

// Accept resolves to the connected socket in Result.N and the remote
// address via Future.Addr.
func (h *Handle) Accept() (*Future, error) {
	rsa := &syscall.RawSockaddrAny{}
	rsaLen := new(uint32)
	*rsaLen = syscall.SizeofSockaddrAny
	return h.future(request{kind: Accept, fd: h.fd, addr: rsa, addrLen: rsaLen})
}

// Close aborts everything still pending on the descriptor before
// submitting the close itself, so futures blocked on it resolve with
// ErrCanceled instead of waiting out a descriptor they can no longer use.
func (h *Handle) Close() (*Future, error) {
	h.driver.cancelFd(h.fd)
	return h.future(request{kind: Close, fd: h.fd})
}

func (h *Handle) Shutdown(how int) (*Future, error) {
	return h.future(request{kind: Shutdown, fd: h.fd, how: how})
}
