package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const holdColumns = `id, booking_id, payment_id, hold_amount, currency, hold_expires_at, status, created_at, updated_at`

type PGHoldRepository struct {
	db DB
}

func NewHoldRepository(db DB) HoldRepository {
	return &PGHoldRepository{db: db}
}

func (r *PGHoldRepository) Create(ctx context.Context, h *domain.HoldRecord) error {
	return conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO payment_holds (id, booking_id, payment_id, hold_amount, currency, hold_expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		h.ID, h.BookingID, h.PaymentID, h.HoldAmount.Amount, h.HoldAmount.Currency, h.ExpiresAt, h.Status,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *PGHoldRepository) GetByPayment(ctx context.Context, paymentID uuid.UUID) (*domain.HoldRecord, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+holdColumns+` FROM payment_holds WHERE payment_id=$1`, paymentID)
	h, err := scanHold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

func (r *PGHoldRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.HoldStatus) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `UPDATE payment_holds SET status=$1, updated_at=now() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiredActive is served by the partial index on hold_expires_at WHERE status='active'.
func (r *PGHoldRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]domain.HoldRecord, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+holdColumns+` FROM payment_holds
		WHERE status=$1 AND hold_expires_at < $2
		ORDER BY hold_expires_at
		LIMIT $3`, domain.HoldStatusActive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.HoldRecord
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *h)
	}
	return holds, rows.Err()
}

func scanHold(row pgx.Row) (*domain.HoldRecord, error) {
	var h domain.HoldRecord
	if err := row.Scan(&h.ID, &h.BookingID, &h.PaymentID, &h.HoldAmount.Amount, &h.HoldAmount.Currency,
		&h.ExpiresAt, &h.Status, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

var _ HoldRepository = (*PGHoldRepository)(nil)
