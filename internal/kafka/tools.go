package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
)

// CheckClusterAvailability connects to every broker the cluster advertises and fails
// unless all of them answer within timeout.
func CheckClusterAvailability(brokers []string, timeout time.Duration) error {
	log := logger.WithField("component", "kafka_tools")

	cfg := sarama.NewConfig()
	if timeout > 0 {
		cfg.Net.DialTimeout = timeout
		cfg.Net.ReadTimeout = timeout
		cfg.Net.WriteTimeout = timeout
	}

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return fmt.Errorf("failed to create kafka client: %w", err)
	}
	defer client.Close()

	advertised := client.Brokers()
	if len(advertised) == 0 {
		return errors.New("no brokers available in the cluster")
	}

	var errs []error
	for _, b := range advertised {
		if err := probeBroker(b, cfg); err != nil {
			errs = append(errs, err)
			continue
		}
		log.WithField("broker", b.Addr()).Trace("Broker reachable")
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Debugf("%d kafka broker(s) reachable", len(advertised))
	return nil
}

func probeBroker(b *sarama.Broker, cfg *sarama.Config) error {
	if err := b.Open(cfg); err != nil && !errors.Is(err, sarama.ErrAlreadyConnected) {
		return fmt.Errorf("broker %s: open: %w", b.Addr(), err)
	}
	defer b.Close()

	connected, err := b.Connected()
	if err != nil {
		return fmt.Errorf("broker %s: %w", b.Addr(), err)
	}
	if !connected {
		return fmt.Errorf("broker %s is not connected", b.Addr())
	}
	return nil
}

// TopicName maps a stream topic key to a Kafka topic under prefix, e.g.
// "binance-btc-usdt-trade" with prefix "shrimpy" becomes "shrimpy.binance-btc-usdt-trade".
func TopicName(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}
