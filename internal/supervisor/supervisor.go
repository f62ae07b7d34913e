// Package supervisor brings a faulted streaming client back with exponential backoff.
// The client itself never reconnects; the supervisor is the caller-side policy.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
)

// ErrNotConnected is returned by Run when the client was never connected.
var ErrNotConnected = errors.New("client has no session to supervise")

// Client is the part of ws.Client the supervisor drives.
type Client interface {
	Reconnect(ctx context.Context, token string) error
	Done() <-chan struct{}
	State() ws.State
	Err() error
	Registry() *ws.Registry
}

// TokenSource returns a fresh streaming token. rest.Client.WebsocketToken fits.
type TokenSource func(ctx context.Context) (string, error)

// Metrics receives reconnect statistics.
type Metrics interface {
	ReconnectAttempted()
	ReconnectFailed()
}

type nopMetrics struct{}

func (nopMetrics) ReconnectAttempted() {}
func (nopMetrics) ReconnectFailed()    {}

// Config holds the exponential backoff settings. Zero values take the defaults of
// backoff.NewExponentialBackOff, except MaxElapsedTime where zero means retry forever.
type Config struct {
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
	Multiplier          float64       `mapstructure:"multiplier"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime      time.Duration `mapstructure:"max_elapsed_time"`
	PerAttemptTimeout   time.Duration `mapstructure:"per_attempt_timeout"`
}

func (c Config) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		bo.InitialInterval = c.InitialInterval
	}
	if c.RandomizationFactor > 0 {
		bo.RandomizationFactor = c.RandomizationFactor
	}
	if c.Multiplier > 0 {
		bo.Multiplier = c.Multiplier
	}
	if c.MaxInterval > 0 {
		bo.MaxInterval = c.MaxInterval
	}
	bo.MaxElapsedTime = c.MaxElapsedTime
	bo.Reset()
	return bo
}

// Supervisor watches one client and reconnects it whenever its session faults.
type Supervisor struct {
	client  Client
	tokens  TokenSource
	cfg     Config
	metrics Metrics
	logger  *logger.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithTokenSource fetches a new token before every attempt. Without it the client keeps
// its current token.
func WithTokenSource(ts TokenSource) Option {
	return func(s *Supervisor) {
		s.tokens = ts
	}
}

// WithMetrics attaches a reconnect statistics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New builds a supervisor for client.
func New(client Client, cfg Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		client:  client,
		cfg:     cfg,
		metrics: nopMetrics{},
		logger:  logger.WithField("component", "supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled, the client is disconnected deliberately, or the
// backoff gives up. Each faulted session is followed by a replay of the registered
// subscriptions and a reconnect.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		done := s.client.Done()
		if done == nil {
			return ErrNotConnected
		}

		select {
		case <-ctx.Done():
			return nil
		case <-done:
		}

		if s.client.State() != ws.StateFaulted {
			s.logger.Info("Client closed, supervisor exiting")
			return nil
		}

		s.logger.WithError(s.client.Err()).Warn("Session faulted, reconnecting")
		if err := s.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Supervisor) reconnect(ctx context.Context) error {
	replayed := s.client.Registry().Replay()
	s.logger.WithField("subscriptions", replayed).Debug("Replaying subscriptions")

	attempts := 0
	operation := func() error {
		attempts++
		s.metrics.ReconnectAttempted()

		attemptCtx := ctx
		if s.cfg.PerAttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.PerAttemptTimeout)
			defer cancel()
		}

		token := ""
		if s.tokens != nil {
			var err error
			if token, err = s.tokens(attemptCtx); err != nil {
				return fmt.Errorf("fetch token: %w", err)
			}
		}

		err := s.client.Reconnect(attemptCtx, token)
		if errors.Is(err, ws.ErrInvalidState) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		s.metrics.ReconnectFailed()
		s.logger.WithError(err).WithFields(logger.Fields{
			"attempt": attempts,
			"delay":   delay,
		}).Warn("Reconnect failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(s.cfg.newBackOff(), ctx), notify); err != nil {
		s.metrics.ReconnectFailed()
		s.logger.WithError(err).WithField("attempts", attempts).Error("Giving up reconnecting")
		return fmt.Errorf("reconnect failed after %d attempts: %w", attempts, err)
	}

	s.logger.WithField("attempts", attempts).Info("Reconnected")
	return nil
}
