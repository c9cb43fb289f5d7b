//go:build linux

package aio

import (
	"time"

	"github.com/brickingsoft/curio/pkg/iouring"
)

type Options struct {
	Entries       uint32
	TableSize     int
	Flags         uint32
	SQThreadIdle  time.Duration
	WaitCurve     Curve
	DrainBatch    int
	DrainAffinity int
	IdleHeartbeat time.Duration
}

type Option func(*Options)

// WithEntries sets the submission ring depth.
func WithEntries(entries uint32) Option {
	return func(o *Options) {
		o.Entries = entries
	}
}

// WithTableSize caps concurrent operations. Defaults to twice the ring
// depth so a full ring can still retire completions.
func WithTableSize(size int) Option {
	return func(o *Options) {
		o.TableSize = size
	}
}

// WithFlags sets io_uring setup flags.
func WithFlags(flags uint32) Option {
	return func(o *Options) {
		o.Flags = flags
	}
}

// WithSQPoll enables kernel side submission polling with the given thread
// idle time.
func WithSQPoll(idle time.Duration) Option {
	return func(o *Options) {
		o.Flags |= iouring.SetupSQPoll
		o.SQThreadIdle = idle
	}
}

// WithWaitCurve replaces the default completion wait curve.
func WithWaitCurve(curve Curve) Option {
	return func(o *Options) {
		o.WaitCurve = curve
	}
}

// WithDrainBatch sets how many completions one drain pass may take.
func WithDrainBatch(n int) Option {
	return func(o *Options) {
		o.DrainBatch = n
	}
}

// WithDrainAffinity pins the background drain goroutine to a cpu.
func WithDrainAffinity(cpu int) Option {
	return func(o *Options) {
		o.DrainAffinity = cpu
	}
}

// WithIdleHeartbeat sets how long the background drain parks when nothing
// is in flight before rechecking.
func WithIdleHeartbeat(d time.Duration) Option {
	return func(o *Options) {
		o.IdleHeartbeat = d
	}
}
