//go:build linux

package curio

import (
	"time"

	"github.com/brickingsoft/curio/pkg/aio"
)

// Option configures the shared driver built on first Pin. Hand them to
// Preset.
type Option = aio.Option

func WithEntries(entries uint32) Option {
	return aio.WithEntries(entries)
}

func WithTableSize(size int) Option {
	return aio.WithTableSize(size)
}

func WithSQPoll(idle time.Duration) Option {
	return aio.WithSQPoll(idle)
}

func WithWaitCurve(curve aio.Curve) Option {
	return aio.WithWaitCurve(curve)
}

func WithDrainBatch(n int) Option {
	return aio.WithDrainBatch(n)
}

func WithDrainAffinity(cpu int) Option {
	return aio.WithDrainAffinity(cpu)
}
