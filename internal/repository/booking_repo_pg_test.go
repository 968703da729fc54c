package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

func TestNewStore(t *testing.T) {
	pool := &pgxpool.Pool{}
	store := NewStore(pool)
	assert.NotNil(t, store.Bookings)
	assert.NotNil(t, store.Payments)
	assert.NotNil(t, store.Holds)
	assert.NotNil(t, store.Tx)
}

func TestConn_FallsBackToPool(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.Equal(t, querier(pool), conn(context.Background(), pool))
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPGBookingRepository_GetByIDMapsNoRows(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM ride_bookings WHERE id=$1")).
		WithArgs("b-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewBookingRepository(mock).GetByID(context.Background(), "b-404")

	var nf *domain.RecordNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "b-404", nf.BookingID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGBookingRepository_TimeoutIfPending(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"pending booking", 1, true},
		{"already answered", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			mock.ExpectExec(regexp.QuoteMeta("UPDATE ride_bookings SET status=$1")).
				WithArgs(domain.BookingStatusTimeoutCancelled, "b-1", domain.BookingStatusPending).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			won, err := NewBookingRepository(mock).TimeoutIfPending(context.Background(), "b-1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, won)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPGBookingRepository_UpdateStatusUnknownBooking(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ride_bookings SET status=$1, payment_status=$2")).
		WithArgs(domain.BookingStatusConfirmed, domain.PaymentStatusCaptured, "b-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewBookingRepository(mock).UpdateStatus(context.Background(), "b-404", domain.BookingStatusConfirmed, domain.PaymentStatusCaptured)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGHoldRepository_UpdateStatusUnknownHold(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_holds SET status=$1")).
		WithArgs(domain.HoldStatusReleased, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewHoldRepository(mock).UpdateStatus(context.Background(), id, domain.HoldStatusReleased)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGTransactor_CommitsRepositoryWrites(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ride_bookings SET status=$1")).
		WithArgs(domain.BookingStatusTimeoutCancelled, "b-1", domain.BookingStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	store := NewStore(mock)
	err := store.Tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		_, err := store.Bookings.TimeoutIfPending(ctx, "b-1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGTransactor_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ride_bookings SET status=$1, payment_status=$2")).
		WithArgs(domain.BookingStatusConfirmed, domain.PaymentStatusCaptured, "b-1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := NewStore(mock)
	err := store.Tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return store.Bookings.UpdateStatus(ctx, "b-1", domain.BookingStatusConfirmed, domain.PaymentStatusCaptured)
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
