package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/shrimpy-stream/internal/events"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStatusPrinter(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Shutdown()

	out := &syncBuffer{}
	p := NewStatusPrinter(bus, out)
	p.Start()

	bus.Publish(events.TopicConnectionState, events.StateChange{
		Session: "abc", From: "connecting", To: "open", At: time.Now(),
	})
	bus.Publish(events.TopicConnectionState, events.StateChange{
		Session: "abc", From: "open", To: "faulted", Err: errors.New("connection closed"), At: time.Now(),
	})
	bus.Publish(events.TopicSubscription, events.SubscriptionChange{Topic: "binance-btc-usdt-bbo", Subscribed: true})
	bus.Publish(events.TopicSubscription, "ignored")

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 3
	}, time.Second, 10*time.Millisecond)
	p.Stop()

	got := out.String()
	assert.Contains(t, got, "connection connecting -> open [abc]")
	assert.Contains(t, got, "connection open -> faulted [abc]: connection closed")
	assert.Contains(t, got, "subscribed binance-btc-usdt-bbo")
	assert.Zero(t, bus.TopicSubscriberCount(events.TopicConnectionState))
}

func TestStatusPrinterStopWithoutStart(t *testing.T) {
	NewStatusPrinter(events.NewEventBus(), &syncBuffer{}).Stop()
}
