package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/observability/metrics"
	"github.com/yourorg/rentnest/internal/reliability/retry"
)

// Publisher dispatches notification events to a durable RabbitMQ topic
// exchange. Producers enqueue and return; a separate worker process consumes
// and sends mail, so a slow transport never blocks the HTTP request.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *slog.Logger
	retryCfg *retry.Config
}

// NewPublisher connects to RabbitMQ and declares the exchange
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger,
		retryCfg: &retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}, nil
}

// Notify publishes an event with its type as the routing key. Messages are
// persistent so they survive a broker restart.
func (p *Publisher) Notify(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		metrics.NotificationAttempt(string(ev.Type), "error")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = retry.Do(ctx, p.retryCfg, p.logger, "publish notification", func(ctx context.Context) error {
		return p.ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		})
	})
	if err != nil {
		metrics.NotificationAttempt(string(ev.Type), "error")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.NotificationAttempt(string(ev.Type), "enqueued")
	return nil
}

// Close shuts the channel and connection down
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
