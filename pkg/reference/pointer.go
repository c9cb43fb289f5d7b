// Package reference counts shared ownership of a Closer. The underlying
// value closes when the last holder releases it.
package reference

import (
	"io"
	"reflect"
	"sync/atomic"
)

func Make[E io.Closer](value E) *Pointer[E] {
	if reflect.ValueOf(value).IsNil() {
		panic("reference: value is nil")
	}
	return &Pointer[E]{value: value}
}

type Pointer[E io.Closer] struct {
	value E
	count atomic.Int64
}

// Value hands out the shared value and takes a reference. Pair every call
// with one Close.
func (pointer *Pointer[E]) Value() E {
	pointer.count.Add(1)
	return pointer.value
}

func (pointer *Pointer[E]) Count() int64 {
	return pointer.count.Load()
}

// Close releases one reference and closes the value when none remain.
func (pointer *Pointer[E]) Close() (err error) {
	if pointer.count.Add(-1) <= 0 {
		err = pointer.value.Close()
	}
	return
}
