//go:build linux

package aio

// Waker is notified at most once after registration when the operation it
// was registered on completes. Registering again replaces the previous
// waker, the last registration wins.
type Waker interface {
	Wake()
}

// readyWaker parks an awaiting goroutine on a single-slot channel, so a
// wake arriving before the wait is not lost.
type readyWaker struct {
	ch chan struct{}
}

func newReadyWaker() *readyWaker {
	return &readyWaker{ch: make(chan struct{}, 1)}
}

func (w *readyWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}
