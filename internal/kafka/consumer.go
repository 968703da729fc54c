package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HoldEventHandler reacts to one terminal hold transition.
type HoldEventHandler func(ctx context.Context, event domain.HoldEvent) error

// Consumer reads hold events from the notifications topic. Offsets are
// committed after the handler returns, so delivery is at least once.
type Consumer struct {
	reader messageReader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume runs until ctx is done or the handler fails. Malformed messages are
// logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handle HoldEventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch hold event: %w", err)
		}

		event, err := DecodeHoldEvent(msg)
		if err != nil {
			c.logger.WarnContext(ctx, "skip malformed hold event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else if err := handle(ctx, event); err != nil {
			return fmt.Errorf("handle %s event for booking %s: %w", event.Outcome, event.BookingID, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit hold event offset %d: %w", msg.Offset, err)
		}
	}
}

func DecodeHoldEvent(msg kafka.Message) (domain.HoldEvent, error) {
	var event domain.HoldEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.HoldEvent{}, fmt.Errorf("decode hold event at offset %d: %w", msg.Offset, err)
	}
	if event.BookingID == "" || event.Outcome == "" {
		return domain.HoldEvent{}, fmt.Errorf("decode hold event at offset %d: booking_id and outcome are required", msg.Offset)
	}
	return event, nil
}
