package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// SyncProducerFactory creates the underlying sarama producer. Tests replace it with
// sarama/mocks.
type SyncProducerFactory func(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error)

// saramaProducer implements KafkaProducer on top of a sarama.SyncProducer. Every send
// waits for the acknowledgement of all in-sync replicas.
type saramaProducer struct {
	producer sarama.SyncProducer
}

// NewSaramaConfig returns the producer configuration used by the pool: acknowledgement
// from all replicas and up to three retries.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

func newSaramaProducer(config ProducerConfig) (KafkaProducer, error) {
	factory := config.NewSyncProducer
	if factory == nil {
		factory = sarama.NewSyncProducer
	}
	saramaConfig := config.SaramaConfig
	if saramaConfig == nil {
		saramaConfig = NewSaramaConfig()
	}

	producer, err := factory(config.BrokerList, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}
	return &saramaProducer{producer: producer}, nil
}

// Send writes msg and waits for the broker acknowledgement or ctx.
func (p *saramaProducer) Send(ctx context.Context, msg Message) error {
	saramaMsg := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Payload),
	}
	if msg.Key != "" {
		saramaMsg.Key = sarama.StringEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		saramaMsg.Headers = append(saramaMsg.Headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(saramaMsg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the Sarama producer, releasing all associated resources.
func (p *saramaProducer) Close() error {
	return p.producer.Close()
}
