//go:build linux

package iouring

// CompletionQueueEvent mirrors struct io_uring_cqe.
type CompletionQueueEvent struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// CQE flags reported by the kernel.
const (
	CQEFBuffer uint32 = 1 << iota
	CQEFMore
	CQEFSockNonempty
	CQEFNotify
)
