package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejoacosta74/shrimpy-stream/internal/circuitbreaker"
	"github.com/alejoacosta74/shrimpy-stream/internal/kafka"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

const defaultForwardTimeout = 5 * time.Second

// Message headers set on every forwarded frame.
const (
	HeaderMessageID  = "message_id"
	HeaderSession    = "session_id"
	HeaderReceivedAt = "received_at"
)

// KafkaHandler forwards raw frames to Kafka, one Kafka topic per stream topic. Sends
// go through a circuit breaker so a dead cluster does not stall every handler goroutine
// on the send timeout.
type KafkaHandler struct {
	sender      kafka.MessageSender
	breaker     *circuitbreaker.CircuitBreaker
	topicPrefix string
	session     func() string
	timeout     time.Duration
	logger      *logger.Logger
}

// KafkaHandlerOption configures a KafkaHandler.
type KafkaHandlerOption func(*KafkaHandler)

// WithSession tags each message with the id returned by session.
func WithSession(session func() string) KafkaHandlerOption {
	return func(h *KafkaHandler) {
		h.session = session
	}
}

// WithForwardTimeout bounds each forward.
func WithForwardTimeout(d time.Duration) KafkaHandlerOption {
	return func(h *KafkaHandler) {
		h.timeout = d
	}
}

// NewKafkaHandler builds a forwarder. breaker may be nil.
func NewKafkaHandler(sender kafka.MessageSender, breaker *circuitbreaker.CircuitBreaker, topicPrefix string, opts ...KafkaHandlerOption) *KafkaHandler {
	h := &KafkaHandler{
		sender:      sender,
		breaker:     breaker,
		topicPrefix: topicPrefix,
		timeout:     defaultForwardTimeout,
		logger:      logger.WithField("component", "kafka_handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle forwards msg. It returns an error wrapping circuitbreaker.ErrOpen while the
// breaker is open.
func (h *KafkaHandler) Handle(msg shrimpy.Message) error {
	topic, err := ws.ResolveTopic(msg)
	if err != nil {
		return err
	}
	if len(msg.Raw) == 0 {
		return fmt.Errorf("message for %s carries no raw frame", topic)
	}

	out := kafka.Message{
		Topic:   kafka.TopicName(h.topicPrefix, topic),
		Key:     topic,
		Payload: msg.Raw,
		Headers: map[string]string{
			HeaderMessageID:  uuid.NewString(),
			HeaderReceivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if h.session != nil {
		out.Headers[HeaderSession] = h.session()
	}

	send := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		return h.sender.Send(ctx, out)
	}

	if h.breaker == nil {
		err = send()
	} else {
		err = h.breaker.Execute(send)
	}
	if err != nil {
		return fmt.Errorf("forward %s to kafka: %w", topic, err)
	}
	h.logger.WithField("kafka_topic", out.Topic).Trace("Forwarded frame")
	return nil
}
