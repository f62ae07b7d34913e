package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejoacosta74/shrimpy-stream/internal/auth"
	"github.com/alejoacosta74/shrimpy-stream/internal/config"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/internal/rest"
)

var errNoCredentials = errors.New("auth.api_key and auth.secret_key are required")

// handleSignals listens for OS signals to cancel the context
func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	case <-ctx.Done():
	}
}

// newRESTClient builds a signed REST client, or returns errNoCredentials when the
// config carries none.
func newRESTClient(cfg *config.Config) (*rest.Client, error) {
	if !cfg.Auth.Enabled() {
		return nil, errNoCredentials
	}
	version, err := auth.ParseVersion(cfg.Auth.Version)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(cfg.Auth.APIKey, cfg.Auth.SecretKey, version)
	if err != nil {
		return nil, err
	}

	opts := []rest.Option{
		rest.WithBaseURL(cfg.REST.BaseURL),
		rest.WithSigner(signer),
		rest.WithTimeout(cfg.REST.Timeout),
	}
	if cfg.REST.RateLimit > 0 {
		opts = append(opts, rest.WithRateLimit(cfg.REST.RateLimit, cfg.REST.Burst))
	}
	return rest.NewClient(opts...)
}
