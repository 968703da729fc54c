package holds

import (
	"context"
	"fmt"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/provider"
	"github.com/google/uuid"
)

type RefundResult struct {
	BookingID        string              `json:"booking_id"`
	PaymentID        uuid.UUID           `json:"payment_id"`
	Outcome          domain.HoldOutcome  `json:"outcome"`
	Amount           domain.Money        `json:"amount"`
	Fee              domain.Money        `json:"fee"`
	Reason           domain.RefundReason `json:"reason"`
	RefundID         string              `json:"refund_id,omitempty"`
	AlreadyProcessed bool                `json:"already_processed"`
}

// refundPlan tunes refundLocked for the flow calling it.
type refundPlan struct {
	// split computes the refund of a captured payment; nil refunds in full.
	split func(total domain.Money) domain.CancellationOutcome
	// bookingStatus overrides the status derived from the reason.
	bookingStatus domain.BookingStatus
}

// RefundHold releases the booking's money: a void when it was never captured,
// a refund when it was. Repeating it returns the stored result without calling
// the provider again.
func (s *Service) RefundHold(ctx context.Context, bookingID string, reason domain.RefundReason) (_ *RefundResult, err error) {
	ctx, span := s.startSpan(ctx, "holds.RefundHold", bookingID)
	defer func() { endSpan(span, err) }()

	if !reason.Valid() {
		return nil, domain.NewValidationError("reason", fmt.Sprintf("%q is not a refund reason", reason))
	}

	unlock, err := s.locker.Lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.refundLocked(ctx, bookingID, reason, refundPlan{})
}

// RejectBooking is the driver declining the ride.
func (s *Service) RejectBooking(ctx context.Context, bookingID string) (_ *RefundResult, err error) {
	ctx, span := s.startSpan(ctx, "holds.RejectBooking", bookingID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.refundLocked(ctx, bookingID, domain.RefundReasonDriverRejected, refundPlan{
		bookingStatus: domain.BookingStatusRejected,
	})
}

// TimeoutBooking closes a pending booking whose driver never answered and
// releases its hold, both under the booking lock: a capture racing the
// deadline either confirms the booking first or finds it closed. timedOut is
// false when the driver or rider acted first.
func (s *Service) TimeoutBooking(ctx context.Context, bookingID string) (timedOut bool, res *RefundResult, err error) {
	ctx, span := s.startSpan(ctx, "holds.TimeoutBooking", bookingID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, bookingID)
	if err != nil {
		return false, nil, err
	}
	defer unlock()

	timedOut, err = s.store.Bookings.TimeoutIfPending(ctx, bookingID)
	if err != nil || !timedOut {
		return false, nil, err
	}
	res, err = s.refundLocked(ctx, bookingID, domain.RefundReasonTimeout, refundPlan{})
	return true, res, err
}

func (s *Service) refundLocked(ctx context.Context, bookingID string, reason domain.RefundReason, plan refundPlan) (*RefundResult, error) {
	payments, err := s.store.Payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	payment := firstWhere(payments, func(st domain.PaymentStatus) bool { return st.IsActive() || st.IsSettled() })
	if payment == nil {
		if released := firstWhere(payments, domain.PaymentStatus.IsReleased); released != nil {
			return storedRefund(released), nil
		}
		return nil, notFound(bookingID, payments)
	}

	prov, err := s.providers.Get(payment.Provider)
	if err != nil {
		return nil, err
	}

	var (
		outcome  domain.HoldOutcome
		refundID string
		touched  bool
		amount   = payment.Amount
		fee      = domain.Money{Currency: payment.Amount.Currency}
	)
	if payment.Status.IsActive() {
		outcome, refundID, touched, err = s.release(ctx, prov, payment, reason)
	} else {
		if plan.split != nil {
			split := plan.split(payment.Amount)
			amount, fee = split.Refund, split.Fee
		}
		outcome = domain.OutcomeRefunded
		if amount.IsPositive() {
			touched = true
			refundID, err = prov.Refund(ctx, payment.SettledReference(), amount, string(reason))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("release hold for booking %s: %w", bookingID, err)
	}

	now := s.now()
	holdStatus := domain.HoldStatusRefunded
	payment.Status = domain.PaymentStatusRefunded
	if outcome == domain.OutcomeVoided {
		holdStatus = domain.HoldStatusReleased
		payment.Status = domain.PaymentStatusCancelled
	}
	payment.RefundID = refundID
	payment.RefundAmount = amount.Amount
	payment.CancellationFee = fee.Amount
	payment.RefundReason = reason
	payment.RefundedAt = &now

	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		hold, err := s.holdFor(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("load hold: %w", err)
		}
		if hold != nil && hold.Status != holdStatus {
			if err := s.store.Holds.UpdateStatus(ctx, hold.ID, holdStatus); err != nil {
				return fmt.Errorf("update hold: %w", err)
			}
		}
		booking, err := s.store.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		return s.store.Bookings.UpdateStatus(ctx, bookingID, closedStatus(booking.Status, reason, plan.bookingStatus), payment.Status)
	})
	if err != nil {
		if !touched {
			return nil, fmt.Errorf("record release for booking %s: %w", bookingID, err)
		}
		return nil, s.reconciliationRequired(ctx, payment, refundID, outcome, amount, err)
	}

	s.logger.InfoContext(ctx, "hold released",
		"booking_id", bookingID,
		"payment_id", payment.ID,
		"outcome", outcome,
		"reason", reason,
		"amount", amount.String(),
		"fee", fee.String(),
	)
	event := domain.HoldEvent{
		BookingID: bookingID,
		PaymentID: payment.ID.String(),
		Outcome:   outcome,
		Amount:    amount,
		Reason:    string(reason),
		Provider:  payment.Provider,
	}
	if fee.IsPositive() {
		event.Fee = &fee
	}
	s.publish(ctx, event)

	return &RefundResult{
		BookingID: bookingID,
		PaymentID: payment.ID,
		Outcome:   outcome,
		Amount:    amount,
		Fee:       fee,
		Reason:    reason,
		RefundID:  refundID,
	}, nil
}

// release voids an uncaptured hold. A provider answering that the reference
// is already captured gets the same amount refunded instead. touched reports
// whether the provider state changed.
func (s *Service) release(ctx context.Context, prov provider.Provider, payment *domain.PaymentRecord, reason domain.RefundReason) (outcome domain.HoldOutcome, refundID string, touched bool, err error) {
	if payment.Status == domain.PaymentStatusRequiresAction {
		// the order was never authorized, nothing is reserved at the provider
		return domain.OutcomeVoided, "", false, nil
	}

	ref := payment.ProviderReference()
	err = prov.Void(ctx, ref)
	if err == nil {
		return domain.OutcomeVoided, "", true, nil
	}

	code, terminal := domain.ProviderCode(err)
	if !terminal {
		return "", "", false, err
	}
	switch code {
	case domain.CodeAlreadyVoided, domain.CodeAuthorizationExpired:
		return domain.OutcomeVoided, "", false, nil
	case domain.CodeAlreadyCaptured:
		s.logger.WarnContext(ctx, "void refused, reference already captured; refunding instead",
			"booking_id", payment.BookingID,
			"payment_id", payment.ID,
			"provider", payment.Provider,
		)
		refundID, err = prov.Refund(ctx, ref, payment.Amount, string(reason))
		if err != nil {
			return "", "", false, err
		}
		return domain.OutcomeRefunded, refundID, true, nil
	}
	return "", "", false, err
}

// closedStatus picks the booking status after a release. A booking the
// marketplace already closed keeps its status.
func closedStatus(current domain.BookingStatus, reason domain.RefundReason, override domain.BookingStatus) domain.BookingStatus {
	switch {
	case current.IsClosed():
		return current
	case override != "":
		return override
	case reason == domain.RefundReasonTimeout:
		return domain.BookingStatusTimeoutCancelled
	}
	return domain.BookingStatusCancelled
}

func storedRefund(p *domain.PaymentRecord) *RefundResult {
	outcome := domain.OutcomeRefunded
	if p.Status != domain.PaymentStatusRefunded {
		outcome = domain.OutcomeVoided
	}
	amount := p.Amount
	if p.RefundedAt != nil {
		amount = domain.Money{Amount: p.RefundAmount, Currency: p.Amount.Currency}
	}
	return &RefundResult{
		BookingID:        p.BookingID,
		PaymentID:        p.ID,
		Outcome:          outcome,
		Amount:           amount,
		Fee:              domain.Money{Amount: p.CancellationFee, Currency: p.Amount.Currency},
		Reason:           p.RefundReason,
		RefundID:         p.RefundID,
		AlreadyProcessed: true,
	}
}
