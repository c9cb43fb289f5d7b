//go:build linux

package iouring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const nsig = 64

func mmap(size uintptr, fd int, offset int64) (ptr unsafe.Pointer, err error) {
	p, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		0,
		size,
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_POPULATE),
		uintptr(fd),
		uintptr(offset),
	)
	if errno != 0 {
		err = errno
		return
	}
	ptr = unsafe.Pointer(p)
	return
}

func munmap(ptr unsafe.Pointer, size uintptr) (err error) {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, uintptr(ptr), size, 0)
	if errno != 0 {
		err = errno
	}
	return
}
