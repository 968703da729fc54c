package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, status, payment_status, departure_at, total_amount, currency,
	response_deadline, payment_authorized_at, payment_expires_at, created_at, updated_at`

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM ride_bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.RecordNotFoundError{Entity: "booking", BookingID: id}
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `UPDATE ride_bookings SET status=$1, payment_status=$2, updated_at=now() WHERE id=$3`, status, paymentStatus, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.RecordNotFoundError{Entity: "booking", BookingID: id}
	}
	return nil
}

func (r *PGBookingRepository) MarkAuthorized(ctx context.Context, id string, paymentStatus domain.PaymentStatus, authorizedAt, expiresAt time.Time) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE ride_bookings
		SET payment_status = $1,
		    payment_authorized_at = $2,
		    payment_expires_at = $3,
		    response_deadline = $3,
		    updated_at = now()
		WHERE id = $4
	`, paymentStatus, authorizedAt, expiresAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.RecordNotFoundError{Entity: "booking", BookingID: id}
	}
	return nil
}

func (r *PGBookingRepository) TimeoutIfPending(ctx context.Context, id string) (bool, error) {
	cmd, err := conn(ctx, r.db).Exec(ctx, `UPDATE ride_bookings SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`,
		domain.BookingStatusTimeoutCancelled, id, domain.BookingStatusPending)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PGBookingRepository) ListPendingPastDeadline(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+bookingColumns+` FROM ride_bookings
		WHERE status=$1 AND response_deadline IS NOT NULL AND response_deadline < $2
		ORDER BY response_deadline
		LIMIT $3`, domain.BookingStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var paymentStatus *string
	if err := row.Scan(&b.ID, &b.Status, &paymentStatus, &b.DepartureAt, &b.TotalAmount.Amount, &b.TotalAmount.Currency,
		&b.ResponseDeadline, &b.PaymentAuthorizedAt, &b.PaymentExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if paymentStatus != nil {
		b.PaymentStatus = domain.PaymentStatus(*paymentStatus)
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
