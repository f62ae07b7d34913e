package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
)

const (
	defaultAcquireTimeout = 3 * time.Second
	defaultSendTimeout    = 5 * time.Second
)

var (
	// ErrPoolNotStarted is returned by Send before Start or after Stop.
	ErrPoolNotStarted = errors.New("producer pool not started")
	// ErrPoolBusy means no producer became available within the acquire timeout.
	ErrPoolBusy = errors.New("no producer available")
)

// Message represents a message to be sent to Kafka
type Message struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

// ProducerConfig holds configuration for the producer pool
type ProducerConfig struct {
	BrokerList     []string // List of Kafka brokers (i.e. ["localhost:9092"])
	PoolSize       int      // Number of producers in the pool
	AcquireTimeout time.Duration
	SendTimeout    time.Duration
	Metrics        Metrics

	// NewSyncProducer defaults to sarama.NewSyncProducer.
	NewSyncProducer SyncProducerFactory
	// SaramaConfig defaults to NewSaramaConfig().
	SaramaConfig *sarama.Config
}

// producerPool manages a pool of KafkaProducers
type producerPool struct {
	producers chan KafkaProducer
	config    ProducerConfig
	logger    *logger.Logger
	wg        sync.WaitGroup
	ctx       context.Context    // Controls pool lifecycle
	cancel    context.CancelFunc // For shutting down the pool
	started   bool
	mu        sync.RWMutex // Protects started flag
	metrics   Metrics
}

// NewProducerPool creates a new pool of Kafka producers
func NewProducerPool(config ProducerConfig) (*producerPool, error) {
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}
	if len(config.BrokerList) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = defaultAcquireTimeout
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaultSendTimeout
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &producerPool{
		config:  config,
		logger:  logger.WithField("component", "kafka_producer_pool"),
		metrics: metrics,
	}, nil
}

// Start initializes the producer pool and creates all producers
func (p *producerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("producer pool already started")
	}

	p.producers = make(chan KafkaProducer, p.config.PoolSize)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	for i := 0; i < p.config.PoolSize; i++ {
		producer, err := newSaramaProducer(p.config)
		if err != nil {
			p.cancel()
			p.closeIdle()
			return fmt.Errorf("failed to create producer %d: %w", i, err)
		}
		p.producers <- producer
	}

	p.started = true
	p.metrics.UpdateKafkaQueueSize(float64(len(p.producers)))
	p.logger.WithField("pool_size", p.config.PoolSize).Info("Producer pool started successfully")
	return nil
}

// Stop rejects new sends, waits for the running ones and closes every producer.
func (p *producerPool) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	p.started = false
	p.mu.Unlock()

	p.logger.Info("Stopping producer pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.SendTimeout * 2):
		return fmt.Errorf("timeout while stopping producer pool")
	}

	if err := p.closeIdle(); err != nil {
		p.logger.WithError(err).Error("Errors occurred while closing producers")
		return err
	}
	p.logger.Info("Producer pool stopped successfully")
	return nil
}

// closeIdle closes the producers waiting in the channel. Producers released after
// cancellation are closed by Send itself.
func (p *producerPool) closeIdle() error {
	var closeErr error
	for {
		select {
		case producer := <-p.producers:
			if err := producer.Close(); err != nil {
				p.logger.WithError(err).Error("Failed to close producer")
				closeErr = err
			}
		default:
			return closeErr
		}
	}
}

// Send delivers msg with a producer borrowed from the pool. It waits up to the acquire
// timeout for a free producer and up to the send timeout for the acknowledgement.
func (p *producerPool) Send(ctx context.Context, msg Message) error {
	start := time.Now()

	p.mu.RLock()
	if !p.started {
		p.mu.RUnlock()
		return ErrPoolNotStarted
	}
	p.wg.Add(1)
	poolCtx := p.ctx
	p.mu.RUnlock()
	defer p.wg.Done()

	p.metrics.UpdateKafkaQueueSize(float64(len(p.producers)))

	acquire := time.NewTimer(p.config.AcquireTimeout)
	defer acquire.Stop()

	select {
	case producer := <-p.producers:
		defer func() {
			select {
			case <-poolCtx.Done():
				producer.Close()
			default:
				p.producers <- producer
			}
		}()

		sendCtx, cancel := context.WithTimeout(ctx, p.config.SendTimeout)
		defer cancel()

		if err := producer.Send(sendCtx, msg); err != nil {
			p.metrics.RecordKafkaError("send_failed")
			return fmt.Errorf("failed to send message: %w", err)
		}

		p.metrics.RecordKafkaMessageSent(msg.Topic, time.Since(start))
		return nil

	case <-acquire.C:
		p.metrics.RecordKafkaError("pool_busy")
		return ErrPoolBusy

	case <-ctx.Done():
		p.metrics.RecordKafkaError("context_cancelled")
		return fmt.Errorf("operation cancelled by caller: %w", ctx.Err())

	case <-poolCtx.Done():
		p.metrics.RecordKafkaError("producer_pool_shutdown")
		return fmt.Errorf("producer pool is shutting down")
	}
}
