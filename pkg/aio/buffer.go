//go:build linux

package aio

import (
	"sync"
)

// Buffer is kernel-visible operation memory. Ownership moves with the
// operation: once submitted the slot holds it until the completion is
// consumed or the orphaned slot is reaped, so caller teardown can never
// leave the kernel writing into freed memory.
type Buffer struct {
	b []byte
}

func (buf *Buffer) Bytes() []byte {
	return buf.b
}

func (buf *Buffer) Len() int {
	return len(buf.b)
}

const (
	defaultBufferCap = 4096
	// large one-off transfers grow past this and are left to the collector
	// instead of parking in the pool
	maxPooledBufferCap = 64 << 10
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &Buffer{b: make([]byte, 0, defaultBufferCap)}
	},
}

func acquireBuffer(size int) (buf *Buffer) {
	buf = bufferPool.Get().(*Buffer)
	if cap(buf.b) < size {
		buf.b = make([]byte, size)
	} else {
		buf.b = buf.b[:size]
	}
	return
}

func releaseBuffer(buf *Buffer) {
	if buf == nil {
		return
	}
	if cap(buf.b) > maxPooledBufferCap {
		return
	}
	buf.b = buf.b[:0]
	bufferPool.Put(buf)
}
