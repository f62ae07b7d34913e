package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ws.DefaultURL, cfg.Feed.URL)
	assert.Equal(t, 10*time.Second, cfg.Feed.HandshakeTimeout)
	assert.Equal(t, 2*time.Second, cfg.Feed.CloseGrace)
	assert.Equal(t, "v1", cfg.Auth.Version)
	assert.False(t, cfg.Auth.Enabled())
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Supervisor.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Supervisor.Backoff.InitialInterval)
	assert.Equal(t, 1.5, cfg.Supervisor.Backoff.Multiplier)
	assert.Zero(t, cfg.Supervisor.Backoff.MaxElapsedTime)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Subscriptions)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: wss://feed.example/ws
  drain_timeout: 1s
subscriptions:
  - binance:btc-usdt:orderbook
kafka:
  enabled: true
  brokers: [k1:9092, k2:9092]
  pool_size: 2
log:
  format: json
`)
	t.Setenv("SHRIMPY_FEED_TOKEN", "secret-token")
	t.Setenv("SHRIMPY_KAFKA_BROKERS", "k3:9092,k4:9092")
	t.Setenv("SHRIMPY_SUPERVISOR_ENABLED", "false")
	t.Setenv("SHRIMPY_SUPERVISOR_BACKOFF_MULTIPLIER", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://feed.example/ws", cfg.Feed.URL)
	assert.Equal(t, "secret-token", cfg.Feed.Token)
	assert.Equal(t, time.Second, cfg.Feed.DrainTimeout)
	assert.Equal(t, []string{"k3:9092", "k4:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Kafka.PoolSize)
	assert.False(t, cfg.Supervisor.Enabled)
	assert.Equal(t, 2.0, cfg.Supervisor.Backoff.Multiplier)
	assert.Equal(t, "json", cfg.Log.Format)

	msgs, err := cfg.Messages()
	require.NoError(t, err)
	assert.Equal(t, []shrimpy.Message{shrimpy.Subscription("binance", "btc-usdt", "orderbook")}, msgs)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("url", "", "")
	flags.StringSlice("sub", nil, "")
	require.NoError(t, flags.Parse([]string{"--url", "ws://127.0.0.1:9000", "--sub", "kucoin:eth-btc:trade"}))

	t.Setenv("SHRIMPY_FEED_URL", "wss://ignored.example")

	cfg, err := Load("",
		WithFlag("feed.url", flags.Lookup("url")),
		WithFlag("subscriptions", flags.Lookup("sub")),
	)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9000", cfg.Feed.URL)
	assert.Equal(t, []string{"kucoin:eth-btc:trade"}, cfg.Subscriptions)

	_, err = Load("", WithFlag("feed.url", flags.Lookup("missing")))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: https://not-a-socket
  handshake_timeout: 0s
auth:
  api_key: key
  version: v9
kafka:
  enabled: true
  brokers: []
  pool_size: 0
log:
  level: loud
  format: xml
`)
	_, err := Load(path)
	require.Error(t, err)

	for _, want := range []string{
		"feed.url",
		"feed.handshake_timeout",
		"auth.version",
		"auth.api_key and auth.secret_key",
		"kafka.brokers",
		"kafka.pool_size",
		"log.level",
		"log.format",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseSubscription(t *testing.T) {
	tests := []struct {
		in      string
		want    shrimpy.Message
		wantErr bool
	}{
		{in: "binance:btc-usdt:bbo", want: shrimpy.Subscription("binance", "btc-usdt", "bbo")},
		{in: " bittrex:ltc-btc:orderbook ", want: shrimpy.Subscription("bittrex", "ltc-btc", "orderbook")},
		{in: "binance:btc-usdt", wantErr: true},
		{in: "binance:btc-usdt:", wantErr: true},
		{in: "a:b:c:d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSubscription(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
