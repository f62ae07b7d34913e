package kafka

import (
	"context"
	"time"
)

// MessageSender delivers one message to Kafka.
type MessageSender interface {
	Send(ctx context.Context, msg Message) error
}

type PoolController interface {
	Start() error
	Stop() error
}

// ProducerPool defines the interface for a pool of Kafka producers.
// It provides methods to start the pool, send messages, and gracefully stop.
type ProducerPool interface {
	MessageSender
	PoolController
}

// KafkaProducer defines the interface for a single producer
type KafkaProducer interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Metrics receives pool statistics. metrics.MetricsRecorder implements it.
type Metrics interface {
	RecordKafkaMessageSent(topic string, latency time.Duration)
	RecordKafkaError(reason string)
	UpdateKafkaQueueSize(n float64)
}

type nopMetrics struct{}

func (nopMetrics) RecordKafkaMessageSent(string, time.Duration) {}
func (nopMetrics) RecordKafkaError(string)                      {}
func (nopMetrics) UpdateKafkaQueueSize(float64)                 {}
