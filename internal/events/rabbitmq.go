package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"shopflow/internal/domain"
)

// RabbitConfig holds the connection settings for the broker.
type RabbitConfig struct {
	URL      string
	Exchange string
}

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher sends order events to a topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	log      zerolog.Logger
}

// NewRabbitPublisher dials the broker once and declares the exchange.
// There is no reconnect loop: a broken connection surfaces as a publish error.
func NewRabbitPublisher(cfg RabbitConfig, log zerolog.Logger) (*RabbitPublisher, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	log.Info().Str("exchange", cfg.Exchange).Msg("rabbitmq exchange ready")
	return &RabbitPublisher{conn: conn, channel: ch, exchange: cfg.Exchange, log: log}, nil
}

func newRabbitPublisherWithChannel(ch amqpChannel, exchange string, log zerolog.Logger) *RabbitPublisher {
	return &RabbitPublisher{channel: ch, exchange: exchange, log: log}
}

func (p *RabbitPublisher) PublishOrderPlaced(ctx context.Context, o domain.Order) error {
	body, err := json.Marshal(NewOrderPlaced(o))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, OrderPlacedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", p.exchange, OrderPlacedRoutingKey, err)
	}
	p.log.Debug().Int64("order_id", o.ID).Str("exchange", p.exchange).Msg("order event published")
	return nil
}

// Close closes the channel and then the connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
