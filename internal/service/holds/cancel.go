package holds

import (
	"context"
	"fmt"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/policy"
)

type CancelResult struct {
	Refund RefundResult               `json:"refund"`
	Policy domain.CancellationOutcome `json:"policy"`
}

// CancelBooking is the rider cancelling. A pending booking has its hold voided
// in full; a confirmed one is refunded per the cancellation tiers, measured
// against the departure time.
func (s *Service) CancelBooking(ctx context.Context, bookingID string) (_ *CancelResult, err error) {
	ctx, span := s.startSpan(ctx, "holds.CancelBooking", bookingID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var (
		plan       refundPlan
		applied    *domain.CancellationOutcome
		fullReason = "cancelled before the driver confirmed: full release"
	)
	switch booking.Status {
	case domain.BookingStatusCompleted:
		return nil, fmt.Errorf("%w: booking %s is completed", domain.ErrBookingClosed, bookingID)
	case domain.BookingStatusConfirmed:
		untilDeparture := booking.DepartureAt.Sub(s.now())
		plan.split = func(total domain.Money) domain.CancellationOutcome {
			split := policy.RefundSplit(total, untilDeparture)
			applied = &split
			return split
		}
	}

	res, err := s.refundLocked(ctx, bookingID, domain.RefundReasonPassengerCancelled, plan)
	if err != nil {
		return nil, err
	}

	switch {
	case applied != nil:
		return &CancelResult{Refund: *res, Policy: *applied}, nil
	case res.AlreadyProcessed:
		return &CancelResult{Refund: *res, Policy: replayedOutcome(res)}, nil
	}
	return &CancelResult{
		Refund: *res,
		Policy: domain.CancellationOutcome{Refund: res.Amount, Fee: res.Fee, Percent: 100, Reason: fullReason},
	}, nil
}

// replayedOutcome rebuilds the split of a cancellation processed earlier from
// the amounts stored on the payment.
func replayedOutcome(res *RefundResult) domain.CancellationOutcome {
	total := res.Amount.Amount + res.Fee.Amount
	percent := 0
	if total > 0 {
		percent = int((res.Amount.Amount*100 + total/2) / total)
	}
	return domain.CancellationOutcome{
		Refund:  res.Amount,
		Fee:     res.Fee,
		Percent: percent,
		Reason:  "cancellation already processed",
	}
}
