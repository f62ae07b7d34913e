// Package metrics exposes connection, handler and Kafka sink statistics through
// Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alejoacosta74/shrimpy-stream/internal/events"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
)

const namespace = "shrimpy"

var connectionStates = []string{"idle", "connecting", "open", "closing", "closed", "faulted"}

// MetricsRecorder implements the streaming client's observer, the dispatcher recorder and
// the Kafka pool metrics hooks on top of Prometheus collectors.
type MetricsRecorder struct {
	wsMetrics struct {
		framesReceived   *prometheus.CounterVec
		framesSent       *prometheus.CounterVec
		framesDropped    *prometheus.CounterVec
		heartbeats       prometheus.Counter
		connectionErrors *prometheus.CounterVec
		state            *prometheus.GaugeVec
		sessions         prometheus.Counter
		reconnects       prometheus.Counter
		reconnectErrors  prometheus.Counter
	}
	handlerMetrics struct {
		dispatched *prometheus.CounterVec
		panicked   *prometheus.CounterVec
	}
	subscriptionMetrics struct {
		active  prometheus.Gauge
		changes *prometheus.CounterVec
	}
	kafkaMetrics struct {
		messagesSent   *prometheus.CounterVec
		sendErrors     *prometheus.CounterVec
		messageLatency prometheus.Histogram
		idleProducers  prometheus.Gauge
	}

	eventBus events.Bus
	logger   *logger.Logger
	done     chan struct{}
}

// NewMetricsRecorder registers the collectors with reg. bus may be nil, in which case
// Start only waits for ctx.
func NewMetricsRecorder(reg prometheus.Registerer, bus events.Bus) *MetricsRecorder {
	r := &MetricsRecorder{
		eventBus: bus,
		logger:   logger.WithField("component", "metrics_recorder"),
		done:     make(chan struct{}),
	}
	factory := promauto.With(reg)

	r.wsMetrics.framesReceived = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "frames_received_total",
		Help:      "Frames received from the feed by topic.",
	}, []string{"topic"})
	r.wsMetrics.framesSent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "frames_sent_total",
		Help:      "Frames sent to the feed by type.",
	}, []string{"type"})
	r.wsMetrics.framesDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "frames_dropped_total",
		Help:      "Data frames dropped because no handler was registered for the topic.",
	}, []string{"topic"})
	r.wsMetrics.heartbeats = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "heartbeats_total",
		Help:      "Pings answered with a pong.",
	})
	r.wsMetrics.connectionErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connection_errors_total",
		Help:      "Transport errors by operation.",
	}, []string{"op"})
	r.wsMetrics.state = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connection_state",
		Help:      "1 for the current connection state, 0 otherwise.",
	}, []string{"state"})
	r.wsMetrics.sessions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "sessions_total",
		Help:      "Connections that reached the open state.",
	})
	r.wsMetrics.reconnects = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "reconnect_attempts_total",
		Help:      "Reconnect attempts made by the supervisor.",
	})
	r.wsMetrics.reconnectErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "reconnect_failures_total",
		Help:      "Reconnect attempts that failed.",
	})

	r.handlerMetrics.dispatched = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "handler",
		Name:      "dispatched_total",
		Help:      "Handler invocations scheduled by topic.",
	}, []string{"topic"})
	r.handlerMetrics.panicked = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "handler",
		Name:      "panics_total",
		Help:      "Handler invocations that panicked by topic.",
	}, []string{"topic"})

	r.subscriptionMetrics.active = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "subscription",
		Name:      "active",
		Help:      "Topics with a registered handler.",
	})
	r.subscriptionMetrics.changes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "subscription",
		Name:      "changes_total",
		Help:      "Subscribe and unsubscribe requests.",
	}, []string{"action"})

	r.kafkaMetrics.messagesSent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "messages_sent_total",
		Help:      "Frames forwarded to Kafka by topic.",
	}, []string{"topic"})
	r.kafkaMetrics.sendErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "send_errors_total",
		Help:      "Failed Kafka sends by reason.",
	}, []string{"reason"})
	r.kafkaMetrics.messageLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "send_latency_seconds",
		Help:      "Time to acquire a producer and get the broker acknowledgement.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	r.kafkaMetrics.idleProducers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "idle_producers",
		Help:      "Producers waiting in the pool.",
	})

	r.setState("idle")
	r.logger.Debug("Metrics recorder initialized")
	return r
}

// Start follows subscription changes on the event bus until ctx is cancelled.
func (r *MetricsRecorder) Start(ctx context.Context) error {
	go r.recordMetrics(ctx)
	return nil
}

// Done is closed once the recorder stops following the event bus.
func (r *MetricsRecorder) Done() <-chan struct{} {
	return r.done
}

func (r *MetricsRecorder) recordMetrics(ctx context.Context) {
	defer close(r.done)
	if r.eventBus == nil {
		<-ctx.Done()
		return
	}

	subs := r.eventBus.Subscribe(events.TopicSubscription)
	defer r.eventBus.Unsubscribe(events.TopicSubscription, subs)
	r.logger.Debug("Subscribed to subscription events")

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Context cancelled, stopping metrics recorder")
			return
		case event, ok := <-subs:
			if !ok {
				r.logger.Debug("Subscription event channel closed")
				return
			}
			change, ok := event.(events.SubscriptionChange)
			if !ok {
				r.logger.Warnf("unexpected event type %T", event)
				continue
			}
			r.recordSubscription(change)
		}
	}
}

func (r *MetricsRecorder) recordSubscription(change events.SubscriptionChange) {
	if change.Subscribed {
		r.subscriptionMetrics.active.Inc()
		r.subscriptionMetrics.changes.WithLabelValues("subscribe").Inc()
		return
	}
	r.subscriptionMetrics.active.Dec()
	r.subscriptionMetrics.changes.WithLabelValues("unsubscribe").Inc()
}

func (r *MetricsRecorder) setState(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.wsMetrics.state.WithLabelValues(s).Set(v)
	}
}

// FrameReceived counts an inbound frame.
func (r *MetricsRecorder) FrameReceived(topic string) {
	r.wsMetrics.framesReceived.WithLabelValues(topic).Inc()
}

// FrameSent counts an outbound frame.
func (r *MetricsRecorder) FrameSent(kind string) {
	r.wsMetrics.framesSent.WithLabelValues(kind).Inc()
}

// FrameDropped counts a data frame nobody was subscribed to.
func (r *MetricsRecorder) FrameDropped(topic string) {
	r.wsMetrics.framesDropped.WithLabelValues(topic).Inc()
}

// HeartbeatAnswered counts a pong.
func (r *MetricsRecorder) HeartbeatAnswered() {
	r.wsMetrics.heartbeats.Inc()
}

// ConnectionError counts a transport failure.
func (r *MetricsRecorder) ConnectionError(op string) {
	r.wsMetrics.connectionErrors.WithLabelValues(op).Inc()
}

// StateChanged tracks the connection state.
func (r *MetricsRecorder) StateChanged(state string) {
	r.setState(state)
	if state == "open" {
		r.wsMetrics.sessions.Inc()
	}
}

// HandlerDispatched counts a scheduled handler.
func (r *MetricsRecorder) HandlerDispatched(topic string) {
	r.handlerMetrics.dispatched.WithLabelValues(topic).Inc()
}

// HandlerPanicked counts a recovered handler panic.
func (r *MetricsRecorder) HandlerPanicked(topic string) {
	r.handlerMetrics.panicked.WithLabelValues(topic).Inc()
}

func (r *MetricsRecorder) ReconnectAttempted() {
	r.wsMetrics.reconnects.Inc()
}

func (r *MetricsRecorder) ReconnectFailed() {
	r.wsMetrics.reconnectErrors.Inc()
}

// RecordKafkaMessageSent records a successful send.
func (r *MetricsRecorder) RecordKafkaMessageSent(topic string, latency time.Duration) {
	r.kafkaMetrics.messagesSent.WithLabelValues(topic).Inc()
	r.kafkaMetrics.messageLatency.Observe(latency.Seconds())
}

// RecordKafkaError records a failed send.
func (r *MetricsRecorder) RecordKafkaError(reason string) {
	r.kafkaMetrics.sendErrors.WithLabelValues(reason).Inc()
}

// UpdateKafkaQueueSize records how many producers are idle in the pool.
func (r *MetricsRecorder) UpdateKafkaQueueSize(n float64) {
	r.kafkaMetrics.idleProducers.Set(n)
}
