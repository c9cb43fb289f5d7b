//go:build linux

package aio

import (
	"syscall"
	"time"
)

type Transmission struct {
	N       uint32
	Timeout time.Duration
}

// Curve shapes the background wait: deeper points wait for more
// completions with a longer timeout. The loop climbs the curve while
// batches come back full and falls back when they do not.
type Curve []Transmission

var defaultCurve = Curve{
	{1, 1 * time.Microsecond},
	{32, 10 * time.Microsecond},
	{256, 30 * time.Microsecond},
	{1024, 50 * time.Microsecond},
	{8192, 100 * time.Microsecond},
}

func newTransmissioner(curve Curve) *transmissioner {
	if len(curve) == 0 {
		curve = defaultCurve
	}
	return &transmissioner{curve: curve}
}

type transmissioner struct {
	curve Curve
	idx   int
}

func (tr *transmissioner) Wait() (n uint32, ts syscall.Timespec) {
	point := tr.curve[tr.idx]
	return point.N, syscall.NsecToTimespec(point.Timeout.Nanoseconds())
}

func (tr *transmissioner) Up() {
	if tr.idx < len(tr.curve)-1 {
		tr.idx++
	}
}

func (tr *transmissioner) Down() {
	if tr.idx > 0 {
		tr.idx--
	}
}
