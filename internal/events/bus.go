package events

import (
	"sync"
)

const defaultBufferSize = 100

// EventBus implements the Bus interface providing a concurrent-safe
// publish-subscribe message bus.
type EventBus struct {
	// subscribers maps topics to a set of subscriber channels
	subscribers map[Topic]map[chan interface{}]struct{}
	// subscribersMu guards subscribers and closed
	subscribersMu sync.RWMutex

	// channelBufferSize determines the buffer size for new subscriber channels
	channelBufferSize int

	closed bool
}

// Option configures an EventBus.
type Option func(*EventBus)

// WithBufferSize sets the buffer size of subscriber channels.
func WithBufferSize(n int) Option {
	return func(b *EventBus) {
		if n > 0 {
			b.channelBufferSize = n
		}
	}
}

// NewEventBus creates a new EventBus instance.
func NewEventBus(opts ...Option) *EventBus {
	b := &EventBus{
		subscribers:       make(map[Topic]map[chan interface{}]struct{}),
		channelBufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends an event to all subscribers of the specified topic.
// It never blocks: a subscriber whose channel is full misses the event.
func (b *EventBus) Publish(topic Topic, event interface{}) {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	if b.closed {
		return
	}
	for subscriberCh := range b.subscribers[topic] {
		select {
		case subscriberCh <- event:
		default:
		}
	}
}

// Subscribe creates a new subscription to the specified topic.
// The subscriber should call Unsubscribe when done to release the channel.
// After Shutdown the returned channel is already closed.
func (b *EventBus) Subscribe(topic Topic) <-chan interface{} {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	ch := make(chan interface{}, b.channelBufferSize)
	if b.closed {
		close(ch)
		return ch
	}

	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[chan interface{}]struct{})
	}
	b.subscribers[topic][ch] = struct{}{}

	return ch
}

// Unsubscribe removes a subscriber from the specified topic and closes its channel.
// It is idempotent.
func (b *EventBus) Unsubscribe(topic Topic, ch <-chan interface{}) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	subscribers, exists := b.subscribers[topic]
	if !exists {
		return
	}

	for subCh := range subscribers {
		if ch == subCh {
			delete(subscribers, subCh)
			close(subCh)
			break
		}
	}

	if len(subscribers) == 0 {
		delete(b.subscribers, topic)
	}
}

// Shutdown closes all subscriber channels. Later publishes are ignored.
func (b *EventBus) Shutdown() {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, subscribers := range b.subscribers {
		for ch := range subscribers {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}

// TopicSubscriberCount returns the number of subscribers for a topic.
func (b *EventBus) TopicSubscriberCount(topic Topic) int {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	return len(b.subscribers[topic])
}
