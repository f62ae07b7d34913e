// Package dispatcher runs subscription and error handlers off the connection goroutine.
//
// A Dispatcher belongs to a single connection session. Once closed it rejects new work and
// waits, up to a deadline, for in-flight handlers to return.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/sourcegraph/conc"
)

// ErrClosed is returned by Dispatch after Close was called.
var ErrClosed = errors.New("dispatcher closed")

// ErrDrainTimeout is returned by Close when handlers are still running at the deadline.
var ErrDrainTimeout = errors.New("timed out draining handlers")

// Recorder receives dispatch statistics.
type Recorder interface {
	HandlerDispatched(topic string)
	HandlerPanicked(topic string)
}

type nopRecorder struct{}

func (nopRecorder) HandlerDispatched(string) {}
func (nopRecorder) HandlerPanicked(string)   {}

// Dispatcher executes handlers concurrently, at most once each, with no ordering
// guarantee between them.
type Dispatcher struct {
	wg       conc.WaitGroup
	mu       sync.RWMutex
	closed   bool
	inflight atomic.Int64

	recorder Recorder
	logger   *logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates an open dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		recorder: nopRecorder{},
		logger:   logger.WithField("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs fn on its own goroutine. A panic in fn is recovered and logged.
func (d *Dispatcher) Dispatch(topic string, fn func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	d.inflight.Add(1)
	d.recorder.HandlerDispatched(topic)
	d.wg.Go(func() {
		defer d.inflight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.recorder.HandlerPanicked(topic)
				d.logger.WithField("topic", topic).Errorf("handler panic: %v", r)
			}
		}()
		fn()
	})
	return nil
}

// InFlight returns the number of handlers currently running.
func (d *Dispatcher) InFlight() int64 {
	return d.inflight.Load()
}

// Close stops accepting work and waits up to timeout for running handlers.
// A non-positive timeout waits without bound. Calling Close twice is safe.
func (d *Dispatcher) Close(timeout time.Duration) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		d.logger.Trace("all handlers drained")
		return nil
	case <-timer.C:
		n := d.inflight.Load()
		d.logger.Warnf("%d handler(s) still running after %s", n, timeout)
		return fmt.Errorf("%w: %d still running", ErrDrainTimeout, n)
	}
}
