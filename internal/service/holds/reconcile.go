package holds

import (
	"context"
	"fmt"

	"github.com/Domenick1991/ridehold/internal/domain"
)

type ReconcileReport struct {
	Repaired int
	Failed   int
}

// Reconcile re-derives hold and booking state from the payment status, which
// is authoritative. It repairs rows left behind when a write failed after the
// provider already moved money.
func (s *Service) Reconcile(ctx context.Context, limit int) (_ ReconcileReport, err error) {
	ctx, span := s.startSpan(ctx, "holds.Reconcile", "")
	defer func() { endSpan(span, err) }()

	var report ReconcileReport
	payments, err := s.store.Payments.ListInconsistent(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("list inconsistent payments: %w", err)
	}

	for i := range payments {
		if err := s.repair(ctx, payments[i]); err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "reconcile payment failed",
				"booking_id", payments[i].BookingID,
				"payment_id", payments[i].ID,
				"status", payments[i].Status,
				"error", err,
			)
			continue
		}
		report.Repaired++
	}
	return report, nil
}

func (s *Service) repair(ctx context.Context, stale domain.PaymentRecord) error {
	unlock, err := s.locker.Lock(ctx, stale.BookingID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// re-read under the lock, another operation may have fixed it
		payments, err := s.store.Payments.ListByBooking(ctx, stale.BookingID)
		if err != nil {
			return err
		}
		var payment *domain.PaymentRecord
		for i := range payments {
			if payments[i].ID == stale.ID {
				payment = &payments[i]
			}
		}
		if payment == nil {
			return notFound(stale.BookingID, payments)
		}

		booking, err := s.store.Bookings.GetByID(ctx, payment.BookingID)
		if err != nil {
			return err
		}
		hold, err := s.holdFor(ctx, payment.ID)
		if err != nil {
			return err
		}

		var (
			holdStatus    domain.HoldStatus
			bookingStatus = booking.Status
		)
		switch {
		case payment.Status.IsSettled():
			holdStatus = domain.HoldStatusCaptured
			if booking.Status == domain.BookingStatusPending {
				bookingStatus = domain.BookingStatusConfirmed
			}
		case payment.Status == domain.PaymentStatusRefunded:
			holdStatus = domain.HoldStatusRefunded
			bookingStatus = closedStatus(booking.Status, payment.RefundReason, "")
		case payment.Status.IsReleased():
			holdStatus = domain.HoldStatusReleased
			bookingStatus = closedStatus(booking.Status, payment.RefundReason, "")
		default:
			return nil
		}

		if hold != nil && hold.Status == domain.HoldStatusActive {
			if err := s.store.Holds.UpdateStatus(ctx, hold.ID, holdStatus); err != nil {
				return fmt.Errorf("update hold: %w", err)
			}
		}
		if bookingStatus != booking.Status || booking.PaymentStatus != payment.Status {
			if err := s.store.Bookings.UpdateStatus(ctx, booking.ID, bookingStatus, payment.Status); err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
		}

		s.logger.InfoContext(ctx, "payment reconciled",
			"booking_id", booking.ID,
			"payment_id", payment.ID,
			"payment_status", payment.Status,
			"booking_status", bookingStatus,
		)
		return nil
	})
}
