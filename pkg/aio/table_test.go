//go:build linux

package aio

import (
	"syscall"
	"testing"
)

func TestTableLifecycle(t *testing.T) {
	tb := NewTable(2)
	id, ok := tb.acquire(request{kind: Nop, fd: -1})
	if !ok {
		t.Fatal("acquire failed on empty table")
	}
	if tb.Occupied() != 1 || tb.Inflight() != 1 {
		t.Fatalf("occupied=%d inflight=%d after acquire", tb.Occupied(), tb.Inflight())
	}
	if _, _, _, done := tb.consume(id); done {
		t.Fatal("consume resolved before completion")
	}
	if w := tb.complete(id, 7, 0); w != nil {
		t.Fatal("waker fired without registration")
	}
	if tb.Inflight() != 0 {
		t.Fatalf("inflight=%d after completion", tb.Inflight())
	}
	r, _, _, done := tb.consume(id)
	if !done {
		t.Fatal("consume did not resolve after completion")
	}
	if r.N != 7 || r.Err != nil {
		t.Fatalf("result = %+v", r)
	}
	if tb.Occupied() != 0 {
		t.Fatalf("occupied=%d after consume", tb.Occupied())
	}
}

func TestTableGenerationRecycles(t *testing.T) {
	tb := NewTable(1)
	first, _ := tb.acquire(request{kind: Nop, fd: -1})
	tb.complete(first, 0, 0)
	if _, _, _, done := tb.consume(first); !done {
		t.Fatal("first consume did not resolve")
	}
	second, ok := tb.acquire(request{kind: Nop, fd: -1})
	if !ok {
		t.Fatal("slot was not recycled")
	}
	if first == second {
		t.Fatal("recycled slot reissued the same id")
	}
	tb.complete(second, 0, 0)
	tb.consume(second)
}

func TestTableStaleCompletionPanics(t *testing.T) {
	tb := NewTable(1)
	id, _ := tb.acquire(request{kind: Nop, fd: -1})
	tb.complete(id, 0, 0)
	tb.consume(id)
	defer func() {
		if recover() == nil {
			t.Fatal("stale completion did not panic")
		}
	}()
	tb.complete(id, 0, 0)
}

func TestTableOrphan(t *testing.T) {
	tb := NewTable(1)
	id, _ := tb.acquire(request{kind: Receive, fd: 0, buf: acquireBuffer(8)})
	if !tb.drop(id) {
		t.Fatal("drop of pending operation did not report inflight")
	}
	if tb.Occupied() != 1 {
		t.Fatal("orphaned slot was freed before completion")
	}
	// the kernel answer reaps the orphan
	if w := tb.complete(id, -int32(syscall.ECANCELED), 0); w != nil {
		t.Fatal("orphan completion fired a waker")
	}
	if tb.Occupied() != 0 || tb.Inflight() != 0 {
		t.Fatalf("occupied=%d inflight=%d after orphan reap", tb.Occupied(), tb.Inflight())
	}
}

func TestTableDropCompleted(t *testing.T) {
	tb := NewTable(1)
	id, _ := tb.acquire(request{kind: Nop, fd: -1})
	tb.complete(id, 3, 0)
	if tb.drop(id) {
		t.Fatal("drop of completed operation reported inflight")
	}
	if tb.Occupied() != 0 {
		t.Fatal("completed slot not freed by drop")
	}
}

func TestTableRegisterAfterCompletion(t *testing.T) {
	tb := NewTable(1)
	id, _ := tb.acquire(request{kind: Nop, fd: -1})
	tb.complete(id, 0, 0)
	w := newReadyWaker()
	if !tb.register(id, w) {
		t.Fatal("registration on completed operation did not report it")
	}
	tb.consume(id)
}

func TestTableExhaustion(t *testing.T) {
	tb := NewTable(2)
	a, _ := tb.acquire(request{kind: Nop, fd: -1})
	b, _ := tb.acquire(request{kind: Nop, fd: -1})
	if _, ok := tb.acquire(request{kind: Nop, fd: -1}); ok {
		t.Fatal("acquire succeeded on full table")
	}
	tb.complete(a, 0, 0)
	tb.consume(a)
	if _, ok := tb.acquire(request{kind: Nop, fd: -1}); !ok {
		t.Fatal("acquire failed after a slot freed")
	}
	tb.complete(b, 0, 0)
	tb.consume(b)
}
