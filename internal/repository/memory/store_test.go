package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	s := New()
	s.PutBooking(domain.Booking{ID: "b-1", Status: domain.BookingStatusPending})
	repos := s.Repositories()
	ctx := context.Background()

	boom := errors.New("boom")
	err := repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p := &domain.PaymentRecord{ID: uuid.New(), BookingID: "b-1", Status: domain.PaymentStatusAuthorized}
		require.NoError(t, repos.Payments.Create(ctx, p))
		require.NoError(t, repos.Bookings.UpdateStatus(ctx, "b-1", domain.BookingStatusConfirmed, domain.PaymentStatusCaptured))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Payments("b-1"))
	b, ok := s.Booking("b-1")
	require.True(t, ok)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
}

func TestStore_ListByBookingNewestFirst(t *testing.T) {
	s := New()
	repos := s.Repositories()
	ctx := context.Background()

	first := &domain.PaymentRecord{ID: uuid.New(), BookingID: "b-1", Status: domain.PaymentStatusCancelled}
	second := &domain.PaymentRecord{ID: uuid.New(), BookingID: "b-1", Status: domain.PaymentStatusAuthorized}
	require.NoError(t, repos.Payments.Create(ctx, first))
	require.NoError(t, repos.Payments.Create(ctx, second))
	require.NoError(t, repos.Payments.Create(ctx, &domain.PaymentRecord{ID: uuid.New(), BookingID: "b-2"}))

	payments, err := repos.Payments.ListByBooking(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, second.ID, payments[0].ID)
	assert.Equal(t, first.ID, payments[1].ID)
}

func TestStore_TimeoutIfPendingOnlyOnce(t *testing.T) {
	s := New()
	s.PutBooking(domain.Booking{ID: "b-1", Status: domain.BookingStatusPending})
	repos := s.Repositories()

	won, err := repos.Bookings.TimeoutIfPending(context.Background(), "b-1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repos.Bookings.TimeoutIfPending(context.Background(), "b-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestStore_ListExpiredActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	repos := s.Repositories()
	ctx := context.Background()

	expired := &domain.HoldRecord{ID: uuid.New(), BookingID: "b-1", Status: domain.HoldStatusActive, ExpiresAt: now.Add(-time.Minute)}
	fresh := &domain.HoldRecord{ID: uuid.New(), BookingID: "b-2", Status: domain.HoldStatusActive, ExpiresAt: now.Add(time.Hour)}
	released := &domain.HoldRecord{ID: uuid.New(), BookingID: "b-3", Status: domain.HoldStatusReleased, ExpiresAt: now.Add(-time.Hour)}
	for _, h := range []*domain.HoldRecord{expired, fresh, released} {
		require.NoError(t, repos.Holds.Create(ctx, h))
	}

	holds, err := repos.Holds.ListExpiredActive(ctx, now, 25)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, expired.ID, holds[0].ID)
}

func TestStore_ListInconsistent(t *testing.T) {
	s := New()
	repos := s.Repositories()
	ctx := context.Background()

	s.PutBooking(domain.Booking{ID: "b-1", Status: domain.BookingStatusPending})
	s.PutBooking(domain.Booking{ID: "b-2", Status: domain.BookingStatusConfirmed})

	stuck := &domain.PaymentRecord{ID: uuid.New(), BookingID: "b-1", Status: domain.PaymentStatusCaptured}
	clean := &domain.PaymentRecord{ID: uuid.New(), BookingID: "b-2", Status: domain.PaymentStatusCaptured}
	require.NoError(t, repos.Payments.Create(ctx, stuck))
	require.NoError(t, repos.Payments.Create(ctx, clean))
	require.NoError(t, repos.Holds.Create(ctx, &domain.HoldRecord{ID: uuid.New(), BookingID: "b-2", PaymentID: clean.ID, Status: domain.HoldStatusCaptured}))

	payments, err := repos.Payments.ListInconsistent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, stuck.ID, payments[0].ID)
}
