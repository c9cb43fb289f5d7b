//go:build linux

package sys

import (
	"sync/atomic"
	"syscall"
)

var dupCloexecUnsupported atomic.Bool

// DupCloseOnExec duplicates fd with close-on-exec set, preferring
// F_DUPFD_CLOEXEC and falling back to dup+fcntl on old kernels.
func DupCloseOnExec(fd int) (int, string, error) {
	if !dupCloexecUnsupported.Load() {
		r0, err := Fcntl(fd, syscall.F_DUPFD_CLOEXEC, 0)
		if err == nil {
			return r0, "", nil
		}
		switch err {
		case syscall.EINVAL, syscall.ENOSYS:
			dupCloexecUnsupported.Store(true)
		default:
			return -1, "fcntl", err
		}
	}
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	newfd, err := syscall.Dup(fd)
	if err != nil {
		return -1, "dup", err
	}
	syscall.CloseOnExec(newfd)
	return newfd, "", nil
}

func Fcntl(fd int, cmd int, arg int) (int, error) {
	r, _, errno := syscall.Syscall(syscall.SYS_FCNTL, uintptr(fd), uintptr(cmd), uintptr(arg))
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}
