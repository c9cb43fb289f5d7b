//go:build linux

package aio

import (
	"testing"
)

func TestBufferPoolCapsSize(t *testing.T) {
	big := acquireBuffer(1 << 20)
	if big.Len() != 1<<20 {
		t.Fatal("len", big.Len())
	}
	releaseBuffer(big)
	small := acquireBuffer(16)
	if cap(small.b) > maxPooledBufferCap {
		t.Errorf("oversized buffer came back from the pool, cap %d", cap(small.b))
	}
	releaseBuffer(small)
}
