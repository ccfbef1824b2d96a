// Package worker is the small process framework that owns a long-running
// body, its stop request, and the join once the body returns.
package worker

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrAlreadyStarted = errors.New("worker already started")

// StopSignal is the capability a running body consumes to learn that its
// owner wants it to stop.
type StopSignal interface {
	RequestStop()
	IsStopRequested() bool
}

// Worker runs a single body on its own goroutine.
type Worker struct {
	name          string
	stopRequested atomic.Bool
	started       atomic.Bool

	done chan struct{}
	mu   sync.Mutex
	err  error
}

func New(name string) *Worker {
	return &Worker{name: name, done: make(chan struct{})}
}

func (w *Worker) Name() string {
	return w.name
}

// Start launches body and returns immediately. A worker runs at most once.
func (w *Worker) Start(body func(StopSignal) error) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go func() {
		defer close(w.done)
		err := body(w)
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}()
	return nil
}

func (w *Worker) RequestStop() {
	w.stopRequested.Store(true)
}

func (w *Worker) IsStopRequested() bool {
	return w.stopRequested.Load()
}

// Done is closed once the body has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Join blocks until the body returns and reports its error. Joining a
// worker that was never started returns nil immediately.
func (w *Worker) Join() error {
	if !w.started.Load() {
		return nil
	}
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
