package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// HealthCheck reports whether the process is healthy. A non-nil error turns /health
// into a 503 carrying the error text.
type HealthCheck func() error

// MetricsServer exposes /metrics and /health over HTTP.
type MetricsServer struct {
	server *http.Server
	logger *logger.Logger
	done   chan struct{}
}

// ServerOption configures a MetricsServer.
type ServerOption func(*serverOptions)

type serverOptions struct {
	registry *prometheus.Registry
	health   HealthCheck
}

// WithRegistry serves the metrics gathered by reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(o *serverOptions) {
		o.registry = reg
	}
}

// WithHealthCheck sets the /health probe.
func WithHealthCheck(h HealthCheck) ServerOption {
	return func(o *serverOptions) {
		o.health = h
	}
}

// NewMetricsServer builds a server listening on addr.
func NewMetricsServer(addr string, opts ...ServerOption) *MetricsServer {
	o := serverOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
	)
	if o.registry != nil {
		gatherer, registerer = o.registry, o.registry
	}

	s := &MetricsServer{
		logger: logger.WithField("component", "metrics_server"),
		done:   make(chan struct{}),
	}

	metricsHandler := promhttp.InstrumentMetricHandler(registerer,
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          registerer,
		}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debugf("Metrics request from %s", r.RemoteAddr)
		metricsHandler.ServeHTTP(w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if o.health != nil {
			if err := o.health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *MetricsServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		close(s.done)
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *MetricsServer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("Shutting down metrics server")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Error shutting down metrics server")
		}
		close(s.done)
	}()

	s.logger.Infof("Serving metrics on %s", ln.Addr())
	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		s.logger.WithError(err).Error("Metrics server failed")
		return err
	}
	<-s.done
	s.logger.Info("Metrics server shutdown complete")
	return nil
}

// Done is closed after the server has shut down.
func (s *MetricsServer) Done() <-chan struct{} {
	return s.done
}
