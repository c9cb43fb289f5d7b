//go:build linux

package iouring

type Options struct {
	Entries      uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	AttachWQFd   uint32
}

type Option func(*Options)

// WithEntries sets the submission queue depth, rounded up to a power of two.
func WithEntries(entries uint32) Option {
	return func(o *Options) {
		o.Entries = entries
	}
}

// WithFlags sets io_uring_setup flags, such as SetupSQPoll.
func WithFlags(flags uint32) Option {
	return func(o *Options) {
		o.Flags = flags
	}
}

// WithSQThreadCPU pins the kernel submission thread to a cpu. Implies
// SetupSQAff, only meaningful together with SetupSQPoll.
func WithSQThreadCPU(cpu uint32) Option {
	return func(o *Options) {
		o.Flags |= SetupSQAff
		o.SQThreadCPU = cpu
	}
}

// WithSQThreadIdle sets the kernel submission thread idle time in
// milliseconds before it needs an EnterSQWakeup.
func WithSQThreadIdle(idle uint32) Option {
	return func(o *Options) {
		o.SQThreadIdle = idle
	}
}

// WithAttachWQ shares the async backend of an existing ring.
func WithAttachWQ(fd uint32) Option {
	return func(o *Options) {
		o.Flags |= SetupAttachWQ
		o.AttachWQFd = fd
	}
}
