//go:build linux

package sys

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/brickingsoft/curio/pkg/kernel"
)

var (
	somaxconn   = syscall.SOMAXCONN
	backlogOnce = sync.Once{}
)

func MaxListenerBacklog() int {
	backlogOnce.Do(func() {
		fd, err := os.Open("/proc/sys/net/core/somaxconn")
		if err != nil {
			return
		}
		defer func() {
			_ = fd.Close()
		}()
		line, readErr := bufio.NewReader(fd).ReadString('\n')
		if readErr != nil {
			return
		}
		n, parseErr := strconv.Atoi(strings.TrimSpace(line))
		if parseErr != nil || n == 0 {
			return
		}
		if n > 1<<16-1 {
			n = maxAckBacklog(n)
		}
		somaxconn = n
	})
	return somaxconn
}

// Linux stores the backlog in a uint16 before 4.1.
func maxAckBacklog(n int) int {
	size := 16
	if kernel.Enable(4, 1, 0) {
		size = 32
	}
	maxAck := uint(1<<size) - 1
	if uint(n) > maxAck {
		n = int(maxAck)
	}
	return n
}
