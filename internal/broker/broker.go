// Package broker wraps the AMQP connection: topology, consuming and publishing.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
)

//go:generate mockgen -destination=mocks/publisher_mock.go -package=mocks github.com/oggyb/muzz-matchmaker/internal/broker Publisher

// Publisher sends a payload to the exchange under routingKey.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Broker owns one AMQP connection with a consuming and a publishing channel.
type Broker struct {
	conn     *amqp.Connection
	consume  *amqp.Channel
	publish  *amqp.Channel
	pubMu    sync.Mutex
	exchange string
	queue    string
	codec    message.Codec
	log      *slog.Logger
}

// Dial connects to the broker and declares the topology:
// a durable topic exchange, a durable queue and its bindings.
func Dial(cfg *config.Config, log *slog.Logger) (*Broker, error) {
	conn, err := amqp.Dial(cfg.Broker.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	b := &Broker{
		conn:     conn,
		exchange: cfg.Broker.Exchange,
		queue:    cfg.Broker.Queue,
		codec:    message.Msgpack,
		log:      log,
	}

	if b.consume, err = conn.Channel(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open consume channel: %w", err)
	}
	if b.publish, err = conn.Channel(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	if err := declare(b.consume, cfg); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func declare(ch *amqp.Channel, cfg *config.Config) error {
	if err := ch.ExchangeDeclare(cfg.Broker.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Broker.Exchange, err)
	}
	if _, err := ch.QueueDeclare(cfg.Broker.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Broker.Queue, err)
	}

	keys := append([]string{}, cfg.Broker.BindingKeys...)
	keys = append(keys, cfg.Broker.RefillKey)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := ch.QueueBind(cfg.Broker.Queue, key, cfg.Broker.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", key, cfg.Broker.Queue, err)
		}
	}
	return nil
}

// Consume sets the prefetch bound and starts delivering from the queue.
// Deliveries must be acked or nacked by the caller.
func (b *Broker) Consume(prefetch int, tag string) (<-chan amqp.Delivery, error) {
	if err := b.consume.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch %d: %w", prefetch, err)
	}
	deliveries, err := b.consume.Consume(b.queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", b.queue, err)
	}
	return deliveries, nil
}

// Publish encodes msg with msgpack and publishes it as a persistent message.
// The correlation id is taken from ctx, or generated when ctx carries none.
func (b *Broker) Publish(ctx context.Context, routingKey string, msg any) error {
	body, err := b.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", routingKey, err)
	}

	id := logger.CorrelationID(ctx)
	if id == "" {
		id = uuid.NewString()
	}

	// amqp channels are not safe for concurrent publishing
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	err = b.publish.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   b.codec.ContentType(),
		DeliveryMode:  amqp.Persistent,
		CorrelationId: id,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}
	return nil
}

// Ping reports whether the connection is still open.
func (b *Broker) Ping(context.Context) error {
	if b.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// NotifyClose returns a channel that receives the error closing the connection.
func (b *Broker) NotifyClose() <-chan *amqp.Error {
	return b.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (b *Broker) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}
