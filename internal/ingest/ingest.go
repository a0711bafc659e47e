package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/millworks/millstream-core/internal/infrastructure/config"
	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/infrastructure/mqtt"
	"github.com/millworks/millstream-core/internal/metrics"
)

// RawMessage is the envelope handed to the pipeline for every received
// MQTT message. ReceivedAt is stamped on arrival and serves as the
// fallback timestamp for payloads that omit one.
type RawMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Ingestor subscribes the configured topic families and feeds received
// messages into a bounded channel.
//
// The channel bound is the pipeline's backpressure mechanism: when the
// workers fall behind, Submit blocks the paho delivery goroutine, which
// slows consumption from the broker instead of growing memory without
// limit.
type Ingestor struct {
	client   *mqtt.Client
	topics   []string
	qos      byte
	out      chan RawMessage
	counters *metrics.Counters
	logger   *logging.Logger

	// stopMu/inflight fence the paho delivery goroutines against Stop:
	// no handler may hold a reference to the channel once it is closed.
	stopMu   sync.Mutex
	inflight sync.WaitGroup
	stopped  bool
}

// New creates an Ingestor. The channel capacity comes from
// pipeline.queue_size in the configuration.
func New(client *mqtt.Client, cfg config.MQTTConfig, queueSize int, counters *metrics.Counters, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		client:   client,
		topics:   cfg.Topics,
		qos:      byte(cfg.QoS), //nolint:gosec // QoS validated to 0..2 by config
		out:      make(chan RawMessage, queueSize),
		counters: counters,
		logger:   logger,
	}
}

// Messages returns the channel of received messages. The channel is
// closed by Stop once all subscriptions are removed.
func (i *Ingestor) Messages() <-chan RawMessage {
	return i.out
}

// Start subscribes all configured topics. The context bounds message
// delivery: once it is cancelled, further messages are discarded so the
// paho goroutine never blocks on a pipeline that stopped draining.
func (i *Ingestor) Start(ctx context.Context) error {
	for _, topic := range i.topics {
		if err := i.client.Subscribe(topic, i.qos, i.handler(ctx)); err != nil {
			return fmt.Errorf("subscribing %s: %w", topic, err)
		}
		i.logger.Info("subscribed", "topic", topic, "qos", i.qos)
	}
	return nil
}

// handler builds the per-message callback for a subscription.
func (i *Ingestor) handler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		i.stopMu.Lock()
		if i.stopped {
			i.stopMu.Unlock()
			return ErrStopped
		}
		i.inflight.Add(1)
		i.stopMu.Unlock()
		defer i.inflight.Done()

		msg := RawMessage{
			Topic:      topic,
			Payload:    payload,
			ReceivedAt: time.Now().UTC(),
		}

		select {
		case i.out <- msg:
			i.counters.MessagesReceived.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop unsubscribes all topics, waits for in-flight deliveries to
// finish, and closes the message channel. Must be called exactly once,
// after the delivery context is cancelled; cancellation is what unblocks
// handlers stuck on a full channel so the wait here terminates.
func (i *Ingestor) Stop() {
	for _, topic := range i.topics {
		if err := i.client.Unsubscribe(topic); err != nil {
			i.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}

	i.stopMu.Lock()
	i.stopped = true
	i.stopMu.Unlock()

	i.inflight.Wait()
	close(i.out)
}
