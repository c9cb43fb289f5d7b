//go:build linux

package sys

import (
	"net"
	"os"
	"syscall"
)

// ListenTCP opens, binds and listens a tcp socket and returns it with the
// bound local address.
func ListenTCP(network string, address string) (sock int, laddr *net.TCPAddr, err error) {
	addr, family, ipv6only, addrErr := ResolveTCPAddr(network, address)
	if addrErr != nil {
		err = addrErr
		return
	}
	sock, err = NewSocket(family, syscall.SOCK_STREAM, syscall.IPPROTO_TCP)
	if err != nil {
		return
	}
	if ipv6only {
		if err = syscall.SetsockoptInt(sock, syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, 1); err != nil {
			_ = syscall.Close(sock)
			err = os.NewSyscallError("setsockopt", err)
			return
		}
	}
	if err = syscall.SetsockoptInt(sock, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		_ = syscall.Close(sock)
		err = os.NewSyscallError("setsockopt", err)
		return
	}
	sa, saErr := TCPAddrToSockaddr(addr)
	if saErr != nil {
		_ = syscall.Close(sock)
		err = saErr
		return
	}
	if err = syscall.Bind(sock, sa); err != nil {
		_ = syscall.Close(sock)
		err = os.NewSyscallError("bind", err)
		return
	}
	if err = syscall.Listen(sock, MaxListenerBacklog()); err != nil {
		_ = syscall.Close(sock)
		err = os.NewSyscallError("listen", err)
		return
	}
	if sn, snErr := syscall.Getsockname(sock); snErr == nil {
		laddr = SockaddrToTCPAddr(sn)
	} else {
		laddr = addr
	}
	return
}
