// Package semaphores carries a single-consumer wakeup token. Many producers
// may Signal, one consumer Waits; signals sent while nobody waits collapse
// into one pending token.
package semaphores

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

func New(timeout time.Duration) (v *Semaphores, err error) {
	if timeout < 1 {
		err = errors.New("semaphores: timeout must be positive")
		return
	}
	v = &Semaphores{
		timeout: timeout,
		timer:   time.NewTimer(timeout),
		ch:      make(chan struct{}, 1),
	}
	return
}

type Semaphores struct {
	timeout time.Duration
	timer   *time.Timer
	ch      chan struct{}
	waiting atomic.Bool
	closed  atomic.Bool
}

// Signal wakes the waiter when one is parked, otherwise it is a no-op.
func (s *Semaphores) Signal() {
	if s.closed.Load() {
		return
	}
	if s.waiting.CompareAndSwap(true, false) {
		s.ch <- struct{}{}
	}
}

// Wait parks until Signal, the timeout, or ctx. The timeout surfaces as
// context.DeadlineExceeded.
func (s *Semaphores) Wait(ctx context.Context) (err error) {
	if s.closed.Load() {
		err = context.Canceled
		return
	}
	if !s.waiting.CompareAndSwap(false, true) {
		return
	}
	s.timer.Reset(s.timeout)
	select {
	case <-ctx.Done():
		if !s.withdraw() {
			err = ctx.Err()
		}
	case <-s.timer.C:
		if !s.withdraw() {
			err = context.DeadlineExceeded
		}
	case _, ok := <-s.ch:
		if !ok {
			err = context.Canceled
		}
	}
	s.timer.Stop()
	return
}

// withdraw leaves the waiting state after a timeout or cancellation. When a
// concurrent Signal already took the flag its token is in flight, so consume
// it and report the wait as signaled.
func (s *Semaphores) withdraw() bool {
	if s.waiting.CompareAndSwap(true, false) {
		return false
	}
	<-s.ch
	return true
}

func (s *Semaphores) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.timer.Stop()
		close(s.ch)
	}
	return nil
}
