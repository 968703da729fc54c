package repository

import (
	"context"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `p.id, p.booking_id, p.user_id, p.amount, p.currency, p.provider, p.payment_method,
	p.payment_intent_id, p.authorization_id, p.transaction_id, p.refund_id, p.status, p.refund_amount,
	p.cancellation_fee, p.refund_reason, p.created_at, p.captured_at, p.refunded_at, p.expires_at, p.updated_at`

type PGPaymentRepository struct {
	db DB
}

func NewPaymentRepository(db DB) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

func (r *PGPaymentRepository) Create(ctx context.Context, p *domain.PaymentRecord) error {
	return conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO payments (id, booking_id, user_id, amount, currency, provider, payment_method,
			payment_intent_id, authorization_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.BookingID, p.UserID, p.Amount.Amount, p.Amount.Currency, p.Provider, p.PaymentMethod,
		p.PaymentIntentID, p.AuthorizationID, p.Status, p.ExpiresAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PGPaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.PaymentRecord, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+paymentColumns+` FROM payments p
		WHERE p.booking_id=$1
		ORDER BY p.created_at DESC`, bookingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *PGPaymentRepository) Update(ctx context.Context, p *domain.PaymentRecord) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE payments
		SET status = $1,
		    authorization_id = $2,
		    transaction_id = $3,
		    refund_id = $4,
		    refund_amount = $5,
		    cancellation_fee = $6,
		    refund_reason = $7,
		    captured_at = $8,
		    refunded_at = $9,
		    updated_at = now()
		WHERE id = $10
	`, p.Status, p.AuthorizationID, p.TransactionID, p.RefundID, p.RefundAmount, p.CancellationFee,
		p.RefundReason, p.CapturedAt, p.RefundedAt, p.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.RecordNotFoundError{Entity: "payment", BookingID: p.BookingID}
	}
	return nil
}

func (r *PGPaymentRepository) ListInconsistent(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+paymentColumns+` FROM payments p
		JOIN ride_bookings b ON b.id = p.booking_id
		LEFT JOIN payment_holds h ON h.payment_id = p.id
		WHERE (p.status IN ('captured', 'completed') AND (b.status = 'pending' OR h.status = 'active'))
		   OR (p.status IN ('refunded', 'cancelled', 'voided') AND h.status = 'active')
		ORDER BY p.updated_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]domain.PaymentRecord, error) {
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		var p domain.PaymentRecord
		if err := rows.Scan(&p.ID, &p.BookingID, &p.UserID, &p.Amount.Amount, &p.Amount.Currency, &p.Provider,
			&p.PaymentMethod, &p.PaymentIntentID, &p.AuthorizationID, &p.TransactionID, &p.RefundID, &p.Status,
			&p.RefundAmount, &p.CancellationFee, &p.RefundReason, &p.CreatedAt, &p.CapturedAt, &p.RefundedAt,
			&p.ExpiresAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
