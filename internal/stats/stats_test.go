package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

func TestCollect(t *testing.T) {
	c := ws.NewClient()
	require.NoError(t, c.Subscribe(shrimpy.Subscription("binance", "btc-usdt", "trade"), func(shrimpy.Message) {}))
	require.NoError(t, c.Subscribe(shrimpy.Subscription("binance", "eth-usdt", "trade"), func(shrimpy.Message) {}))

	snap := NewStreamStats(c, time.Second).Collect()

	assert.Equal(t, "idle", snap.State)
	assert.Empty(t, snap.Session)
	assert.Equal(t, 2, snap.Subscriptions)
	assert.Equal(t, 2, snap.Pending)
	assert.Positive(t, snap.Goroutines)
}

func TestStartStopsOnCancel(t *testing.T) {
	s := NewStreamStats(ws.NewClient(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	go func() { _ = s.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("stats loop did not stop")
	}
}
