// Package broker ships index events to the search indexer over RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"threadline/internal/logger"
	"threadline/internal/services"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes index events as persistent JSON messages on a topic
// exchange. An amqp channel is not safe for concurrent use, so publishes
// are serialized.
type Publisher struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string

	mu sync.Mutex
}

func Dial(url, exchange, routingKey string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker.Dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker.Dial: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("broker.Dial: declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

func (p *Publisher) Publish(ctx context.Context, evt services.IndexEvent) error {
	msg, err := message(evt)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("broker.Publish %s: %w", evt.Key, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

func message(evt services.IndexEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("broker: encode %s: %w", evt.Key, err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    evt.ID.String(),
		Timestamp:    evt.At,
		Type:         string(evt.Action),
		Body:         body,
	}, nil
}

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, evt services.IndexEvent) error {
	logger.Info("Index event",
		zap.String("action", string(evt.Action)),
		zap.String("key", evt.Key),
		zap.String("id", evt.ID.String()))
	return nil
}

var (
	_ services.IndexPublisher = (*Publisher)(nil)
	_ services.IndexPublisher = LogPublisher{}
)
