//go:build linux

package aio

import (
	"context"
	"net"
	"os"
	"syscall"

	"github.com/brickingsoft/errors"
)

var (
	// ErrBusy means the submission ring or the operation table is full.
	// The submission had no effect; retry after completions drain.
	ErrBusy = errors.Define("aio: busy")
	// ErrClosed means the driver has shut down.
	ErrClosed = errors.Define("aio: closed")
	// ErrUnsupported means the running kernel cannot carry the driver.
	ErrUnsupported = errors.Define("aio: kernel version too low")
	// ErrConsumed means a future result was taken twice.
	ErrConsumed = errors.Define("aio: future already consumed")
)

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

type CanceledError struct{}

func (e *CanceledError) Error() string   { return "operation was canceled" }
func (e *CanceledError) Timeout() bool   { return false }
func (e *CanceledError) Temporary() bool { return true }
func (e *CanceledError) Is(err error) bool {
	return err == context.Canceled || errors.Is(err, syscall.ECANCELED)
}

type TimeoutError struct{}

func (e *TimeoutError) Error() string   { return "operation timed out" }
func (e *TimeoutError) Timeout() bool   { return true }
func (e *TimeoutError) Temporary() bool { return true }
func (e *TimeoutError) Is(err error) bool {
	return err == context.DeadlineExceeded || os.IsTimeout(err)
}

var (
	ErrCanceled = &CanceledError{}
	ErrTimeout  = &TimeoutError{}
)

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var tErr net.Error
	if errors.As(err, &tErr) {
		return tErr.Timeout()
	}
	return false
}

// completionError maps a negative cqe result to an error carrying the
// original errno, so callers can match syscall codes with errors.Is.
func completionError(name string, res int32) error {
	errno := syscall.Errno(-res)
	if errno == syscall.ECANCELED {
		return ErrCanceled
	}
	return os.NewSyscallError(name, errno)
}
