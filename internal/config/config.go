// Package config loads the stream settings from an optional YAML file, SHRIMPY_* env
// vars, bound CLI flags and defaults, in that order of precedence (flags first).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alejoacosta74/shrimpy-stream/internal/auth"
	"github.com/alejoacosta74/shrimpy-stream/internal/supervisor"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

// EnvPrefix prefixes every environment override, e.g. SHRIMPY_FEED_TOKEN.
const EnvPrefix = "SHRIMPY"

// Config holds every setting of the stream command.
type Config struct {
	Feed          FeedConfig       `mapstructure:"feed"`
	Subscriptions []string         `mapstructure:"subscriptions"`
	Auth          AuthConfig       `mapstructure:"auth"`
	REST          RESTConfig       `mapstructure:"rest"`
	Kafka         KafkaConfig      `mapstructure:"kafka"`
	Metrics       MetricsConfig    `mapstructure:"metrics"`
	Supervisor    SupervisorConfig `mapstructure:"supervisor"`
	Log           LogConfig        `mapstructure:"log"`
	System        SystemConfig     `mapstructure:"system"`
}

type FeedConfig struct {
	URL              string        `mapstructure:"url"`
	Token            string        `mapstructure:"token"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	DrainTimeout     time.Duration `mapstructure:"drain_timeout"`
	CloseGrace       time.Duration `mapstructure:"close_grace"`
}

type AuthConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	Version   string `mapstructure:"version"`
}

// Enabled reports whether REST credentials are configured.
func (a AuthConfig) Enabled() bool {
	return a.APIKey != "" || a.SecretKey != ""
}

type RESTConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

type KafkaConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Brokers          []string      `mapstructure:"brokers"`
	PoolSize         int           `mapstructure:"pool_size"`
	TopicPrefix      string        `mapstructure:"topic_prefix"`
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type SupervisorConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Backoff supervisor.Config `mapstructure:"backoff"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SystemConfig tunes the Go runtime. Zero leaves the runtime default in place.
type SystemConfig struct {
	MaxProcs    int `mapstructure:"max_procs"`
	GCPercent   int `mapstructure:"gc_percent"`
	MaxThreads  int `mapstructure:"max_threads"`
	MemoryLimit int `mapstructure:"memory_limit_mb"`
}

var defaults = map[string]interface{}{
	"feed.url":               ws.DefaultURL,
	"feed.token":             "",
	"feed.handshake_timeout": "10s",
	"feed.drain_timeout":     "5s",
	"feed.close_grace":       "2s",

	"subscriptions": []string{},

	"auth.api_key":    "",
	"auth.secret_key": "",
	"auth.version":    string(auth.VersionV1),

	"rest.base_url":   "https://dev-api.shrimpy.io/v1/",
	"rest.timeout":    "15s",
	"rest.rate_limit": 0.0,
	"rest.burst":      1,

	"kafka.enabled":           false,
	"kafka.brokers":           []string{"localhost:9092"},
	"kafka.pool_size":         5,
	"kafka.topic_prefix":      "shrimpy",
	"kafka.acquire_timeout":   "5s",
	"kafka.send_timeout":      "10s",
	"kafka.probe_timeout":     "5s",
	"kafka.breaker_threshold": 5,
	"kafka.breaker_timeout":   "30s",

	"metrics.enabled": false,
	"metrics.addr":    ":2112",

	"supervisor.enabled":                      true,
	"supervisor.backoff.initial_interval":     "500ms",
	"supervisor.backoff.randomization_factor": 0.5,
	"supervisor.backoff.multiplier":           1.5,
	"supervisor.backoff.max_interval":         "30s",
	"supervisor.backoff.max_elapsed_time":     "0s",
	"supervisor.backoff.per_attempt_timeout":  "15s",

	"log.level":  "info",
	"log.format": "text",

	"system.max_procs":       0,
	"system.gc_percent":      0,
	"system.max_threads":     0,
	"system.memory_limit_mb": 0,
}

// LoadOption customises Load.
type LoadOption func(*viper.Viper) error

// WithFlag binds a command-line flag to key. An explicitly set flag wins over the file
// and the environment.
func WithFlag(key string, flag *pflag.Flag) LoadOption {
	return func(v *viper.Viper) error {
		if flag == nil {
			return fmt.Errorf("flag for %q not found", key)
		}
		return v.BindPFlag(key, flag)
	}
}

// Load reads, decodes and validates the configuration. An empty path skips the file.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("bind flag: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToBoolHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// stringToBoolHook parses "true"/"false" coming from the environment.
func stringToBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}

// Validate returns every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if u, err := url.Parse(c.Feed.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		add("feed.url must be a ws:// or wss:// URL, got %q", c.Feed.URL)
	}
	if c.Feed.HandshakeTimeout <= 0 {
		add("feed.handshake_timeout must be > 0")
	}
	if c.Feed.DrainTimeout < 0 {
		add("feed.drain_timeout must be >= 0")
	}
	if c.Feed.CloseGrace < 0 {
		add("feed.close_grace must be >= 0")
	}
	if _, err := c.Messages(); err != nil {
		errs = append(errs, err)
	}

	if _, err := auth.ParseVersion(c.Auth.Version); err != nil {
		add("auth.version: %v", err)
	}
	if c.Auth.Enabled() && (c.Auth.APIKey == "" || c.Auth.SecretKey == "") {
		add("auth.api_key and auth.secret_key must be set together")
	}

	if u, err := url.Parse(c.REST.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("rest.base_url must be an absolute URL, got %q", c.REST.BaseURL)
	}
	if c.REST.Timeout <= 0 {
		add("rest.timeout must be > 0")
	}
	if c.REST.RateLimit < 0 {
		add("rest.rate_limit must be >= 0")
	}
	if c.REST.RateLimit > 0 && c.REST.Burst < 1 {
		add("rest.burst must be >= 1 when rest.rate_limit is set")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			add("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.PoolSize <= 0 {
			add("kafka.pool_size must be > 0")
		}
		if c.Kafka.BreakerThreshold <= 0 {
			add("kafka.breaker_threshold must be > 0")
		}
		if c.Kafka.BreakerTimeout <= 0 {
			add("kafka.breaker_timeout must be > 0")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		add("metrics.addr is required when metrics are enabled")
	}

	b := c.Supervisor.Backoff
	if b.Multiplier != 0 && b.Multiplier < 1 {
		add("supervisor.backoff.multiplier must be >= 1")
	}
	if b.RandomizationFactor < 0 || b.RandomizationFactor > 1 {
		add("supervisor.backoff.randomization_factor must be within [0, 1]")
	}
	if b.InitialInterval > 0 && b.MaxInterval > 0 && b.MaxInterval < b.InitialInterval {
		add("supervisor.backoff.max_interval must be >= initial_interval")
	}
	if b.MaxElapsedTime < 0 {
		add("supervisor.backoff.max_elapsed_time must be >= 0")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format must be one of [text, json]")
	}

	if c.System.MaxProcs < 0 || c.System.MaxThreads < 0 || c.System.MemoryLimit < 0 {
		add("system limits must be >= 0")
	}

	return errors.Join(errs...)
}

// Messages parses the exchange:pair:channel entries of Subscriptions into subscribe
// messages and rejects those that do not resolve to a topic.
func (c *Config) Messages() ([]shrimpy.Message, error) {
	msgs := make([]shrimpy.Message, 0, len(c.Subscriptions))
	for _, s := range c.Subscriptions {
		msg, err := ParseSubscription(s)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ParseSubscription turns "exchange:pair:channel" into a subscribe message.
func ParseSubscription(s string) (shrimpy.Message, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return shrimpy.Message{}, fmt.Errorf("subscription %q: want exchange:pair:channel", s)
	}
	msg := shrimpy.Subscription(parts[0], parts[1], parts[2])
	if _, err := ws.ResolveTopic(msg); err != nil {
		return shrimpy.Message{}, fmt.Errorf("subscription %q: %w", s, err)
	}
	return msg, nil
}
