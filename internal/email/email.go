// Package email stands in for the notification collaborator that turns hold
// events into rider and driver messages.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/ridehold/internal/domain"
)

type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event domain.HoldEvent) error {
	subject, err := Subject(event)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "send notification",
		"booking_id", event.BookingID,
		"outcome", event.Outcome,
		"subject", subject,
	)
	return nil
}

// Subject renders the message subject for an event outcome.
func Subject(event domain.HoldEvent) (string, error) {
	switch event.Outcome {
	case domain.OutcomeCaptured:
		return fmt.Sprintf("Your ride is confirmed: %s charged", event.Amount), nil
	case domain.OutcomeVoided:
		return "Your ride request was released, no charge was made", nil
	case domain.OutcomeRefunded:
		if event.Fee != nil && event.Fee.IsPositive() {
			return fmt.Sprintf("Refund of %s issued (cancellation fee %s)", event.Amount, *event.Fee), nil
		}
		return fmt.Sprintf("Refund of %s issued", event.Amount), nil
	case domain.OutcomeReconciliationRequired:
		return fmt.Sprintf("Payment for booking %s is under review", event.BookingID), nil
	}
	return "", fmt.Errorf("unknown hold outcome %q", event.Outcome)
}
