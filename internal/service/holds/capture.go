package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/google/uuid"
)

type CaptureResult struct {
	BookingID       string       `json:"booking_id"`
	PaymentID       uuid.UUID    `json:"payment_id"`
	CaptureID       string       `json:"capture_id"`
	Amount          domain.Money `json:"amount"`
	AlreadyCaptured bool         `json:"already_captured"`
}

// CaptureHold turns the booking's active hold into a charge and confirms the
// booking. A booking whose payment is already captured is a no-op success.
func (s *Service) CaptureHold(ctx context.Context, bookingID string) (_ *CaptureResult, err error) {
	ctx, span := s.startSpan(ctx, "holds.CaptureHold", bookingID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.captureLocked(ctx, bookingID)
}

// AcceptBooking is the driver accepting the ride. An expired hold is released
// with reason timeout and the expiry is still reported to the driver.
func (s *Service) AcceptBooking(ctx context.Context, bookingID string) (*CaptureResult, error) {
	res, err := s.CaptureHold(ctx, bookingID)
	if err == nil || !errors.Is(err, domain.ErrHoldExpired) {
		return res, err
	}

	if _, refundErr := s.RefundHold(ctx, bookingID, domain.RefundReasonTimeout); refundErr != nil {
		s.logger.ErrorContext(ctx, "release expired hold after accept failed",
			"booking_id", bookingID,
			"error", refundErr,
		)
	}
	return nil, err
}

func (s *Service) captureLocked(ctx context.Context, bookingID string) (*CaptureResult, error) {
	payments, err := s.store.Payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	payment := firstActive(payments)
	if payment == nil {
		if settled := firstWhere(payments, domain.PaymentStatus.IsSettled); settled != nil {
			return &CaptureResult{
				BookingID:       bookingID,
				PaymentID:       settled.ID,
				CaptureID:       settled.TransactionID,
				Amount:          settled.Amount,
				AlreadyCaptured: true,
			}, nil
		}
	}

	booking, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsClosed() {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrBookingClosed, bookingID, booking.Status)
	}
	if payment == nil {
		return nil, notFound(bookingID, payments)
	}

	hold, err := s.holdFor(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	expiresAt := payment.ExpiresAt
	if hold != nil {
		expiresAt = hold.ExpiresAt
	}
	if now := s.now(); now.After(expiresAt) {
		return nil, fmt.Errorf("%w: booking %s hold expired at %s", domain.ErrHoldExpired, bookingID, expiresAt.Format(time.RFC3339))
	}

	prov, err := s.providers.Get(payment.Provider)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentStatusRequiresAction {
		authID, err := prov.ExplicitAuthorize(ctx, payment.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("authorize order for booking %s: %w", bookingID, err)
		}
		payment.AuthorizationID = authID
		payment.Status = domain.PaymentStatusAuthorized
		if err := s.store.Payments.Update(ctx, payment); err != nil {
			return nil, fmt.Errorf("record authorization for booking %s: %w", bookingID, err)
		}
	}

	captured, err := prov.Capture(ctx, payment.ProviderReference(), nil)
	if err != nil {
		if code, ok := domain.ProviderCode(err); ok && code == domain.CodeAuthorizationExpired {
			return nil, fmt.Errorf("%w: booking %s: %w", domain.ErrHoldExpired, bookingID, err)
		}
		return nil, fmt.Errorf("capture hold for booking %s: %w", bookingID, err)
	}

	capturedAt := s.now()
	payment.Status = domain.PaymentStatusCaptured
	payment.TransactionID = captured.CaptureID
	payment.CapturedAt = &capturedAt

	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if hold != nil {
			if err := s.store.Holds.UpdateStatus(ctx, hold.ID, domain.HoldStatusCaptured); err != nil {
				return fmt.Errorf("update hold: %w", err)
			}
		}
		return s.store.Bookings.UpdateStatus(ctx, bookingID, domain.BookingStatusConfirmed, domain.PaymentStatusCaptured)
	})
	if err != nil {
		return nil, s.reconciliationRequired(ctx, payment, captured.CaptureID, domain.OutcomeCaptured, captured.Amount, err)
	}

	s.logger.InfoContext(ctx, "hold captured",
		"booking_id", bookingID,
		"payment_id", payment.ID,
		"capture_id", captured.CaptureID,
		"amount", captured.Amount.String(),
	)
	s.publish(ctx, domain.HoldEvent{
		BookingID: bookingID,
		PaymentID: payment.ID.String(),
		Outcome:   domain.OutcomeCaptured,
		Amount:    captured.Amount,
		Provider:  payment.Provider,
	})

	return &CaptureResult{
		BookingID: bookingID,
		PaymentID: payment.ID,
		CaptureID: captured.CaptureID,
		Amount:    captured.Amount,
	}, nil
}

// reconciliationRequired reports a provider-side success whose store write
// failed, so the money moved but the rows do not say so.
func (s *Service) reconciliationRequired(ctx context.Context, payment *domain.PaymentRecord, providerID string, outcome domain.HoldOutcome, amount domain.Money, cause error) error {
	recErr := &domain.ReconciliationRequiredError{
		BookingID:  payment.BookingID,
		PaymentID:  payment.ID,
		ProviderID: providerID,
		Outcome:    outcome,
		Err:        cause,
	}
	s.logger.ErrorContext(ctx, "reconciliation required",
		"booking_id", payment.BookingID,
		"payment_id", payment.ID,
		"provider", payment.Provider,
		"provider_id", providerID,
		"outcome", outcome,
		"error", cause,
	)
	s.publish(ctx, domain.HoldEvent{
		BookingID: payment.BookingID,
		PaymentID: payment.ID.String(),
		Outcome:   domain.OutcomeReconciliationRequired,
		Amount:    amount,
		Reason:    string(outcome),
		Provider:  payment.Provider,
	})
	return recErr
}
