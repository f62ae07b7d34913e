package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alejoacosta74/shrimpy-stream/internal/circuitbreaker"
	"github.com/alejoacosta74/shrimpy-stream/internal/config"
	"github.com/alejoacosta74/shrimpy-stream/internal/events"
	"github.com/alejoacosta74/shrimpy-stream/internal/handlers"
	"github.com/alejoacosta74/shrimpy-stream/internal/kafka"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/internal/metrics"
	"github.com/alejoacosta74/shrimpy-stream/internal/rest"
	"github.com/alejoacosta74/shrimpy-stream/internal/stats"
	"github.com/alejoacosta74/shrimpy-stream/internal/supervisor"
	"github.com/alejoacosta74/shrimpy-stream/internal/system"
	"github.com/alejoacosta74/shrimpy-stream/internal/ui"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Connect to the feed and stream subscriptions",
	Long: `Connect to the feed, subscribe to every --sub topic and print each frame.
Frames can also be forwarded to Kafka, one Kafka topic per stream topic.

Example:
  shrimpy-stream stream --sub binance:btc-usdt:orderbook --sub coinbasepro:eth-btc:trade`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().StringSlice("sub", nil, "subscription as exchange:pair:channel (repeatable)")
	streamCmd.Flags().String("url", "", "feed websocket url")
	streamCmd.Flags().String("token", "", "feed token")
	streamCmd.Flags().Bool("kafka", false, "forward frames to kafka")
	streamCmd.Flags().StringSlice("brokers", nil, "kafka brokers")
	streamCmd.Flags().Bool("metrics", false, "serve prometheus metrics")
	streamCmd.Flags().String("metrics-addr", "", "metrics listen address")
	streamCmd.Flags().Bool("quiet", false, "do not print frames")
	streamCmd.Flags().Bool("status", false, "print connection and subscription changes")
	streamCmd.Flags().Duration("stats-interval", 0, "log stream stats at this interval (0 disables)")
	streamCmd.Flags().String("cpuprofile", "", "write a cpu profile to this file")
	streamCmd.Flags().String("memprofile", "", "write a heap profile to this file on exit")
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"subscriptions":   "sub",
		"feed.url":        "url",
		"feed.token":      "token",
		"kafka.enabled":   "kafka",
		"kafka.brokers":   "brokers",
		"metrics.enabled": "metrics",
		"metrics.addr":    "metrics-addr",
	})
	if err != nil {
		return err
	}
	log := logger.WithField("component", "stream")

	msgs, err := cfg.Messages()
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return errors.New("no subscriptions: pass --sub exchange:pair:channel or set subscriptions in the config")
	}

	system.FromConfig(cfg.System).Apply()

	cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
	memprofile, _ := cmd.Flags().GetString("memprofile")
	stopProfiling, err := system.StartProfiling(cpuprofile, memprofile)
	if err != nil {
		return err
	}
	defer func() {
		if err := stopProfiling(); err != nil {
			log.WithError(err).Error("Failed to write profiles")
		}
	}()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(ctx, cancel)

	bus := events.NewEventBus()
	defer bus.Shutdown()

	if status, _ := cmd.Flags().GetBool("status"); status {
		printer := ui.NewStatusPrinter(bus, cmd.OutOrStdout())
		printer.Start()
		defer printer.Stop()
	}

	var restClient *rest.Client
	if cfg.Auth.Enabled() {
		if restClient, err = newRESTClient(cfg); err != nil {
			return err
		}
	}

	token := cfg.Feed.Token
	if token == "" && restClient != nil {
		if token, err = restClient.WebsocketToken(ctx); err != nil {
			return fmt.Errorf("fetch feed token: %w", err)
		}
	}

	clientOpts := []ws.Option{
		ws.WithURL(cfg.Feed.URL),
		ws.WithToken(token),
		ws.WithEventBus(bus),
		ws.WithHandshakeTimeout(cfg.Feed.HandshakeTimeout),
		ws.WithDrainTimeout(cfg.Feed.DrainTimeout),
		ws.WithCloseGrace(cfg.Feed.CloseGrace),
		ws.WithErrorHandler(func(e *ws.ServerError) {
			log.WithField("code", e.Code).Warnf("Feed reported an error: %s", e.Message)
		}),
	}

	var (
		registry *prometheus.Registry
		recorder *metrics.MetricsRecorder
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			metrics.NewRuntimeCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.NewMetricsRecorder(registry, bus)
		clientOpts = append(clientOpts, ws.WithObserver(recorder))
	}

	client := ws.NewClient(clientOpts...)

	var chain []handlers.MessageHandler
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		chain = append(chain, handlers.NewDebugHandler(cmd.OutOrStdout()))
	}

	if cfg.Kafka.Enabled {
		pool, err := startKafka(cfg.Kafka, recorder)
		if err != nil {
			return err
		}
		defer func() {
			if err := pool.Stop(); err != nil {
				log.WithError(err).Error("Failed to stop kafka producer pool")
			}
		}()
		breaker := circuitbreaker.NewCircuitBreaker(cfg.Kafka.BreakerThreshold, cfg.Kafka.BreakerTimeout)
		chain = append(chain, handlers.NewKafkaHandler(pool, breaker, cfg.Kafka.TopicPrefix,
			handlers.WithSession(client.SessionID),
			handlers.WithForwardTimeout(cfg.Kafka.SendTimeout),
		))
	}

	handler := handlers.Chain(chain...)
	for _, msg := range msgs {
		if err := client.Subscribe(msg, handler); err != nil {
			return err
		}
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		client.Disconnect()
		return nil
	})

	if cfg.Supervisor.Enabled {
		opts := []supervisor.Option{}
		if restClient != nil {
			opts = append(opts, supervisor.WithTokenSource(restClient.WebsocketToken))
		}
		if recorder != nil {
			opts = append(opts, supervisor.WithMetrics(recorder))
		}
		sup := supervisor.New(client, cfg.Supervisor.Backoff, opts...)
		g.Go(func() error { return sup.Run(ctx) })
	} else {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case <-client.Done():
				if client.State() == ws.StateFaulted {
					return client.Err()
				}
				return nil
			}
		})
	}

	if recorder != nil {
		g.Go(func() error { return recorder.Start(ctx) })

		server := metrics.NewMetricsServer(cfg.Metrics.Addr,
			metrics.WithRegistry(registry),
			metrics.WithHealthCheck(func() error {
				if s := client.State(); s != ws.StateOpen {
					return fmt.Errorf("connection %s", s)
				}
				return nil
			}),
		)
		g.Go(func() error { return server.Start(ctx) })
	}

	if interval, _ := cmd.Flags().GetDuration("stats-interval"); interval > 0 {
		g.Go(func() error { return stats.NewStreamStats(client, interval).Start(ctx) })
	}

	err = g.Wait()
	log.WithField("state", client.State().String()).Info("Client shutdown")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startKafka checks the cluster and starts the producer pool.
func startKafka(cfg config.KafkaConfig, recorder *metrics.MetricsRecorder) (kafka.ProducerPool, error) {
	if err := kafka.CheckClusterAvailability(cfg.Brokers, cfg.ProbeTimeout); err != nil {
		return nil, fmt.Errorf("kafka cluster unavailable: %w", err)
	}

	pc := kafka.ProducerConfig{
		BrokerList:     cfg.Brokers,
		PoolSize:       cfg.PoolSize,
		AcquireTimeout: cfg.AcquireTimeout,
		SendTimeout:    cfg.SendTimeout,
	}
	if recorder != nil {
		pc.Metrics = recorder
	}
	pool, err := kafka.NewProducerPool(pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Start(); err != nil {
		return nil, fmt.Errorf("start kafka producer pool: %w", err)
	}
	return pool, nil
}
