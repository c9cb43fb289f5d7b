//go:build linux

// Package iouring is a thin io_uring layer reduced to what the aio driver
// actually submits: setup and mmap of the rings, SQE acquisition, batched
// submission, batched completion peeking and the timed completion wait.
package iouring

import (
	"math"
)

const (
	sysSetup    = 425
	sysEnter    = 426
	sysRegister = 427
)

// io_uring_setup flags.
const (
	SetupIOPoll uint32 = 1 << iota
	SetupSQPoll
	SetupSQAff
	SetupCQSize
	SetupClamp
	SetupAttachWQ
	SetupRDisabled
	SetupSubmitAll
	SetupCoopTaskRun
	SetupTaskRunFlag
	SetupSQE128
	SetupCQE32
	SetupSingleIssuer
	SetupDeferTaskRun
)

// io_uring_params features filled in by the kernel.
const (
	FeatSingleMMap uint32 = 1 << iota
	FeatNoDrop
	FeatSubmitStable
	FeatRWCurPos
	FeatCurPersonality
	FeatFastPoll
	FeatPoll32Bits
	FeatSQPollNonfixed
	FeatExtArg
	FeatNativeWorkers
	FeatRcrcTags
	FeatCQESkip
	FeatLinkedFile
	FeatRegRegRing
)

// io_uring_enter flags.
const (
	EnterGetEvents uint32 = 1 << iota
	EnterSQWakeup
	EnterSQWait
	EnterExtArg
)

// SQ ring flags (sq.flags).
const (
	SQNeedWakeup uint32 = 1 << iota
	SQCQOverflow
	SQTaskrun
)

// Async cancel flags (sqe.cancel_flags). Fd matching is a 5.19 feature.
const (
	AsyncCancelAll uint32 = 1 << iota
	AsyncCancelFd
	AsyncCancelAny
	AsyncCancelFdFixed
)

// Opcodes. Only the set prepared by this module is exported by name; the
// numbering follows the kernel ABI so the gaps must stay.
const (
	OpNop uint8 = iota
	opReadv
	opWritev
	opFsync
	opReadFixed
	opWriteFixed
	opPollAdd
	opPollRemove
	opSyncFileRange
	OpSendmsg
	OpRecvmsg
	opTimeout
	opTimeoutRemove
	OpAccept
	OpAsyncCancel
	opLinkTimeout
	OpConnect
	opFallocate
	opOpenat
	OpClose
	opFilesUpdate
	opStatx
	opRead
	opWrite
	opFadvise
	opMadvise
	OpSend
	OpRecv
	opOpenat2
	opEpollCtl
	opSplice
	opProvideBuffers
	opRemoveBuffers
	opTee
	OpShutdown

	OpLast uint8 = math.MaxUint8
)

const (
	kernMaxEntries   = 32768
	kernMaxCQEntries = 2 * kernMaxEntries

	MaxEntries     = kernMaxEntries
	DefaultEntries = 1024
)

// liburing: io_sqring_offsets
type sqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

// liburing: io_cqring_offsets
type cqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

// liburing: io_uring_params
type params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        sqRingOffsets
	cqOff        cqRingOffsets
}

// liburing: io_uring_getevents_arg
type getEventsArg struct {
	sigMask   uint64
	sigMaskSz uint32
	pad       uint32
	ts        uint64
}

func fls(x int) int {
	n := 0
	for ; x != 0; x >>= 1 {
		n++
	}
	return n
}

func roundupPow2(n uint32) uint32 {
	if n < 2 {
		return 2
	}
	return 1 << uint32(fls(int(n-1)))
}
