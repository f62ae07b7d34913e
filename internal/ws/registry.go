package ws

import (
	"errors"
	"sync"

	"github.com/alejoacosta74/shrimpy-stream/internal/events"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

// Handler consumes data frames of one topic. It runs on a dispatcher goroutine.
type Handler func(msg shrimpy.Message)

// ErrorHandler consumes server-reported errors. It runs on a dispatcher goroutine.
type ErrorHandler func(err *ServerError)

var errNilHandler = errors.New("handler must not be nil")

type entry struct {
	msg     shrimpy.Message
	handler Handler
}

// Registry maps topics to handlers and queues the wire messages that announce each
// change to the server.
//
// Writers (Subscribe, Unsubscribe, Drain) share one mutex that guards the outbox and
// serializes handler-map updates. Lookup reads the handler map without taking that
// mutex, so routing never waits on a slow subscriber.
type Registry struct {
	mu       sync.Mutex
	outbox   []shrimpy.Message
	topics   int
	handlers sync.Map // topic -> entry

	bus    events.Bus
	logger *logger.Logger
}

// NewRegistry returns an empty registry. bus may be nil.
func NewRegistry(bus events.Bus) *Registry {
	return &Registry{
		bus:    bus,
		logger: logger.WithField("component", "ws_registry"),
	}
}

// Subscribe registers handler for the topic of msg and queues msg for sending.
//
// Two messages resolving to the same topic share one slot: the later handler replaces
// the earlier one and a warning is logged.
func (r *Registry) Subscribe(msg shrimpy.Message, handler Handler) error {
	if handler == nil {
		return errNilHandler
	}
	topic, err := ResolveTopic(msg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, loaded := r.handlers.Swap(topic, entry{msg: msg, handler: handler}); loaded {
		r.logger.WithField("topic", topic).Warn("replacing existing handler for topic")
	} else {
		r.topics++
	}
	r.outbox = append(r.outbox, msg)
	r.mu.Unlock()

	r.publish(topic, true)
	r.logger.WithField("topic", topic).Debug("subscription queued")
	return nil
}

// Unsubscribe removes the handler for the topic of msg and queues msg for sending.
// The message is queued even when no handler was registered.
func (r *Registry) Unsubscribe(msg shrimpy.Message) error {
	topic, err := ResolveTopic(msg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, loaded := r.handlers.LoadAndDelete(topic); loaded {
		r.topics--
	}
	r.outbox = append(r.outbox, msg)
	r.mu.Unlock()

	r.publish(topic, false)
	r.logger.WithField("topic", topic).Debug("unsubscription queued")
	return nil
}

// Lookup returns the handler registered for topic.
func (r *Registry) Lookup(topic string) (Handler, bool) {
	v, ok := r.handlers.Load(topic)
	if !ok {
		return nil, false
	}
	return v.(entry).handler, true
}

// Replay queues the subscribe message of every registered topic again. A new session
// starts with no server-side subscriptions, so callers replay before reconnecting.
// Topics whose subscribe is still pending in the outbox are not queued twice.
func (r *Registry) Replay() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]struct{}, len(r.outbox))
	for _, msg := range r.outbox {
		if msg.Type != shrimpy.TypeSubscribe {
			continue
		}
		if topic, err := ResolveTopic(msg); err == nil {
			pending[topic] = struct{}{}
		}
	}

	n := 0
	r.handlers.Range(func(k, v any) bool {
		if _, ok := pending[k.(string)]; ok {
			return true
		}
		r.outbox = append(r.outbox, v.(entry).msg)
		n++
		return true
	})
	return n
}

// Drain swaps out the outbox and returns the pending messages in the order they were
// queued.
func (r *Registry) Drain() []shrimpy.Message {
	r.mu.Lock()
	pending := r.outbox
	r.outbox = nil
	r.mu.Unlock()
	return pending
}

// Pending returns the number of queued messages.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outbox)
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics
}

// Topics returns the registered topic keys.
func (r *Registry) Topics() []string {
	var topics []string
	r.handlers.Range(func(k, _ any) bool {
		topics = append(topics, k.(string))
		return true
	})
	return topics
}

func (r *Registry) publish(topic string, subscribed bool) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.TopicSubscription, events.SubscriptionChange{Topic: topic, Subscribed: subscribed})
}
