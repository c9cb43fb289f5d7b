//go:build linux

package iouring_test

import (
	"syscall"
	"testing"
	"time"

	"github.com/brickingsoft/curio/pkg/iouring"
)

func TestRing_Nop(t *testing.T) {
	ring, ringErr := iouring.New(iouring.WithEntries(8))
	if ringErr != nil {
		t.Fatal(ringErr)
	}
	defer func() {
		_ = ring.Close()
	}()

	sqe := ring.GetSQE()
	if sqe == nil {
		t.Fatal("no sqe available on a fresh ring")
	}
	sqe.PrepareNop()
	sqe.SetData64(101)

	if _, submitErr := ring.Submit(); submitErr != nil {
		t.Fatal(submitErr)
	}

	ts := syscall.NsecToTimespec(int64(500 * time.Millisecond))
	if waitErr := ring.WaitCQEs(1, &ts, nil); waitErr != nil {
		t.Fatal(waitErr)
	}

	cqes := make([]*iouring.CompletionQueueEvent, 8)
	n := ring.PeekBatchCQE(cqes)
	if n != 1 {
		t.Fatalf("peeked %d cqes, want 1", n)
	}
	if cqes[0].UserData != 101 {
		t.Errorf("user data = %d, want 101", cqes[0].UserData)
	}
	if cqes[0].Res < 0 {
		t.Errorf("nop failed: %v", syscall.Errno(-cqes[0].Res))
	}
	ring.CQAdvance(n)
}

func TestRing_GetSQEFull(t *testing.T) {
	ring, ringErr := iouring.New(iouring.WithEntries(2))
	if ringErr != nil {
		t.Fatal(ringErr)
	}
	defer func() {
		_ = ring.Close()
	}()

	entries := ring.SQEntries()
	for i := uint32(0); i < entries; i++ {
		sqe := ring.GetSQE()
		if sqe == nil {
			t.Fatalf("sqe %d unavailable before the ring filled", i)
		}
		sqe.PrepareNop()
		sqe.SetData64(uint64(i + 1))
	}
	if sqe := ring.GetSQE(); sqe != nil {
		t.Fatal("got sqe from a full submission ring")
	}

	if _, submitErr := ring.Submit(); submitErr != nil {
		t.Fatal(submitErr)
	}
	ts := syscall.NsecToTimespec(int64(500 * time.Millisecond))
	if waitErr := ring.WaitCQEs(entries, &ts, nil); waitErr != nil {
		t.Fatal(waitErr)
	}

	cqes := make([]*iouring.CompletionQueueEvent, entries)
	n := ring.PeekBatchCQE(cqes)
	if n != entries {
		t.Fatalf("peeked %d cqes, want %d", n, entries)
	}
	ring.CQAdvance(n)

	if sqe := ring.GetSQE(); sqe == nil {
		t.Fatal("no sqe available after draining")
	}
}
