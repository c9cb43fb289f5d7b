//go:build linux

package kernel_test

import (
	"testing"

	"github.com/brickingsoft/curio/pkg/kernel"
)

func TestGet(t *testing.T) {
	v := kernel.Get()
	if v.Invalid() {
		t.Fatal("invalid kernel version")
	}
	t.Log(v)
}

func TestCompare(t *testing.T) {
	a := kernel.Version{Major: 5, Minor: 19}
	b := kernel.Version{Major: 6, Minor: 1, Patch: 3}
	if kernel.Compare(a, b) != -1 {
		t.Error("5.19 not below 6.1.3")
	}
	if kernel.Compare(b, a) != 1 {
		t.Error("6.1.3 not above 5.19")
	}
	if kernel.Compare(a, a) != 0 {
		t.Error("5.19 not equal to itself")
	}
}
