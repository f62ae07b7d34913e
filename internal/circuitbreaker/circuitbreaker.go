// Package circuitbreaker stops calls to a failing dependency for a cool-down period.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
)

// ErrOpen is returned by Execute while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit is tripped, requests blocked
	StateHalfOpen              // Testing if service has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after threshold consecutive failures and lets a single probe
// through once timeout has elapsed.
type CircuitBreaker struct {
	state     State
	failures  int
	threshold int
	timeout   time.Duration
	lastError error
	mu        sync.Mutex
	openTime  time.Time
	probing   bool
	now       func() time.Time
	logger    *logger.Logger
}

// NewCircuitBreaker creates a closed breaker. A threshold below 1 is treated as 1.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger.WithField("component", "circuitbreaker"),
	}
}

// Execute runs fn if the breaker allows it and records the result. While the circuit is
// open it returns an error wrapping ErrOpen without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.AllowRequest() {
		return fmt.Errorf("%w: %v", ErrOpen, cb.LastError())
	}

	err := fn()
	cb.RecordResult(err)
	return err
}

// AllowRequest reports whether a call may go through. After the timeout an open breaker
// turns half-open and admits exactly one probe until its result is recorded.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openTime) < cb.timeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.probing = true
		cb.logger.Warn("Circuit breaker transitioned to half-open")
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

// RecordResult records the outcome of a call. A failed probe reopens the circuit; a
// successful call closes it.
func (cb *CircuitBreaker) RecordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil {
		cb.failures++
		cb.lastError = err
		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			if cb.state != StateOpen {
				cb.logger.WithError(err).Warn("Circuit breaker opened")
			}
			cb.state = StateOpen
			cb.openTime = cb.now()
		}
		return
	}

	if cb.state != StateClosed {
		cb.logger.Info("Circuit breaker closed")
	}
	cb.failures = 0
	cb.state = StateClosed
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) LastError() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.lastError
}
