package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/google/uuid"
)

type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// UpdateStatus sets the booking and payment status columns.
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) error
	// MarkAuthorized stamps response_deadline and the payment authorization columns.
	MarkAuthorized(ctx context.Context, id string, paymentStatus domain.PaymentStatus, authorizedAt, expiresAt time.Time) error
	// TimeoutIfPending flips a pending booking to timeout_cancelled and reports
	// whether this call won the transition.
	TimeoutIfPending(ctx context.Context, id string) (bool, error)
	ListPendingPastDeadline(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.PaymentRecord) error
	// ListByBooking returns every payment for the booking, newest first.
	ListByBooking(ctx context.Context, bookingID string) ([]domain.PaymentRecord, error)
	Update(ctx context.Context, payment *domain.PaymentRecord) error
	// ListInconsistent returns payments whose hold or booking row disagrees
	// with the payment status.
	ListInconsistent(ctx context.Context, limit int) ([]domain.PaymentRecord, error)
}

type HoldRepository interface {
	Create(ctx context.Context, hold *domain.HoldRecord) error
	GetByPayment(ctx context.Context, paymentID uuid.UUID) (*domain.HoldRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.HoldStatus) error
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]domain.HoldRecord, error)
}

// Transactor runs fn inside one store transaction. Repositories called with
// the ctx passed to fn take part in it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store groups what the hold manager needs from persistence.
type Store struct {
	Bookings BookingRepository
	Payments PaymentRepository
	Holds    HoldRepository
	Tx       Transactor
}
