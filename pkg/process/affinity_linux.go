//go:build linux

package process

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// SetCPUAffinity pins the calling thread to one cpu, wrapping index by the
// cpu count. Callers pair it with runtime.LockOSThread.
func SetCPUAffinity(index int) (err error) {
	mask := unix.CPUSet{}
	mask.Zero()
	mask.Set(index % runtime.NumCPU())
	if err = unix.SchedSetaffinity(0, &mask); err != nil {
		err = fmt.Errorf("process: sched_setaffinity: %w", err)
	}
	return
}
