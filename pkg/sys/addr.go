//go:build linux

package sys

import (
	"errors"
	"net"
	"strings"
	"syscall"
	"unsafe"
)

// ResolveTCPAddr resolves address for the tcp family networks and reports
// the socket family to open for it.
func ResolveTCPAddr(network string, address string) (addr *net.TCPAddr, family int, ipv6only bool, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		err = errors.New("sys: address is empty")
		return
	}
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		err = net.UnknownNetworkError(network)
		return
	}
	ipv6only = strings.HasSuffix(network, "6")
	a, resolveErr := net.ResolveTCPAddr(network, address)
	if resolveErr != nil {
		err = resolveErr
		return
	}
	if !ipv6only && a.AddrPort().Addr().Is4In6() {
		a.IP = a.IP.To4()
	}
	switch len(a.IP) {
	case net.IPv4len:
		family = syscall.AF_INET
	case net.IPv6len:
		family = syscall.AF_INET6
	case 0:
		if ipv6only {
			family = syscall.AF_INET6
			a.IP = net.IPv6zero
		} else {
			family = syscall.AF_INET
			a.IP = net.IPv4zero.To4()
		}
	default:
		err = errors.New("sys: ip is invalid")
		return
	}
	addr = a
	return
}

func TCPAddrToSockaddr(addr *net.TCPAddr) (sa syscall.Sockaddr, err error) {
	if addr.AddrPort().Addr().Is4In6() {
		addr.IP = addr.IP.To4()
	}
	switch len(addr.IP) {
	case net.IPv4len:
		sa4 := &syscall.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], addr.IP)
		sa = sa4
	case net.IPv6len:
		zoneId := uint32(0)
		if ifi, ifiErr := net.InterfaceByName(addr.Zone); ifiErr == nil {
			zoneId = uint32(ifi.Index)
		}
		sa6 := &syscall.SockaddrInet6{Port: addr.Port, ZoneId: zoneId}
		copy(sa6.Addr[:], addr.IP.To16())
		sa = sa6
	default:
		err = errors.New("sys: ip is invalid")
	}
	return
}

func SockaddrToTCPAddr(sa syscall.Sockaddr) (addr *net.TCPAddr) {
	switch sa := sa.(type) {
	case *syscall.SockaddrInet4:
		addr = &net.TCPAddr{
			IP:   append([]byte{}, sa.Addr[:]...),
			Port: sa.Port,
		}
	case *syscall.SockaddrInet6:
		var zone string
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
		addr = &net.TCPAddr{
			IP:   append([]byte{}, sa.Addr[:]...),
			Port: sa.Port,
			Zone: zone,
		}
	}
	return
}

func RawSockaddrAnyToSockaddr(rsa *syscall.RawSockaddrAny) (syscall.Sockaddr, error) {
	switch rsa.Addr.Family {
	case syscall.AF_INET:
		pp := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		sa := new(syscall.SockaddrInet4)
		p := (*[2]byte)(unsafe.Pointer(&pp.Port))
		sa.Port = int(p[0])<<8 + int(p[1])
		sa.Addr = pp.Addr
		return sa, nil
	case syscall.AF_INET6:
		pp := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		sa := new(syscall.SockaddrInet6)
		p := (*[2]byte)(unsafe.Pointer(&pp.Port))
		sa.Port = int(p[0])<<8 + int(p[1])
		sa.ZoneId = pp.Scope_id
		sa.Addr = pp.Addr
		return sa, nil
	}
	return nil, syscall.EAFNOSUPPORT
}

func SockaddrToRawSockaddrAny(sa syscall.Sockaddr) (name *syscall.RawSockaddrAny, nameLen int32, err error) {
	switch s := sa.(type) {
	case *syscall.SockaddrInet4:
		name = &syscall.RawSockaddrAny{}
		raw := (*syscall.RawSockaddrInet4)(unsafe.Pointer(name))
		raw.Family = syscall.AF_INET
		p := (*[2]byte)(unsafe.Pointer(&raw.Port))
		p[0] = byte(s.Port >> 8)
		p[1] = byte(s.Port)
		raw.Addr = s.Addr
		nameLen = int32(unsafe.Sizeof(*raw))
		return
	case *syscall.SockaddrInet6:
		name = &syscall.RawSockaddrAny{}
		raw := (*syscall.RawSockaddrInet6)(unsafe.Pointer(name))
		raw.Family = syscall.AF_INET6
		p := (*[2]byte)(unsafe.Pointer(&raw.Port))
		p[0] = byte(s.Port >> 8)
		p[1] = byte(s.Port)
		raw.Scope_id = s.ZoneId
		raw.Addr = s.Addr
		nameLen = int32(unsafe.Sizeof(*raw))
		return
	default:
		err = errors.New("sys: invalid address type")
		return
	}
}
