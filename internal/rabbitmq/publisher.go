// Package rabbitmq publishes hold events to a durable topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
}

func NewPublisher(url, exchange, routingKey string) (*Publisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

// PublishHoldEvent routes on "<routingKey>.<outcome>", e.g. payment.hold.captured.
func (p *Publisher) PublishHoldEvent(ctx context.Context, event domain.HoldEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal hold event: %w", err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, p.routingKey+"."+string(event.Outcome), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.BookingID + ":" + string(event.Outcome),
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// FallbackPublisher drops events with a warning. Used when the broker is
// unreachable at startup so the API keeps serving.
type FallbackPublisher struct {
	Logger *slog.Logger
}

func (p *FallbackPublisher) PublishHoldEvent(_ context.Context, event domain.HoldEvent) error {
	p.Logger.Warn("hold event publish skipped",
		"component", "rabbitmq_publisher",
		"mode", "fallback",
		"booking_id", event.BookingID,
		"outcome", event.Outcome,
	)
	return nil
}

func (p *FallbackPublisher) Close() error {
	return nil
}
