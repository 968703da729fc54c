// Package memory is an in-process record store used by tests and local runs
// without Postgres. A failed transaction restores the snapshot taken when it began.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	now      func() time.Time
	bookings map[string]domain.Booking
	payments map[uuid.UUID]domain.PaymentRecord
	order    []uuid.UUID
	holds    map[uuid.UUID]domain.HoldRecord
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		bookings: make(map[string]domain.Booking),
		payments: make(map[uuid.UUID]domain.PaymentRecord),
		holds:    make(map[uuid.UUID]domain.HoldRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Bookings: &bookingRepo{s: s},
		Payments: &paymentRepo{s: s},
		Holds:    &holdRepo{s: s},
		Tx:       &transactor{s: s},
	}
}

// PutBooking inserts or replaces a booking row.
func (s *Store) PutBooking(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.UpdatedAt = s.now()
	s.bookings[b.ID] = b
}

func (s *Store) Booking(id string) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

// Payments returns the booking's payments, newest first.
func (s *Store) Payments(bookingID string) []domain.PaymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentsFor(bookingID)
}

// Holds returns every hold of the booking.
func (s *Store) Holds(bookingID string) []domain.HoldRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HoldRecord
	for _, h := range s.holds {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) paymentsFor(bookingID string) []domain.PaymentRecord {
	var out []domain.PaymentRecord
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.payments[s.order[i]]
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) holdByPayment(paymentID uuid.UUID) (domain.HoldRecord, bool) {
	for _, h := range s.holds {
		if h.PaymentID == paymentID {
			return h, true
		}
	}
	return domain.HoldRecord{}, false
}

type snapshot struct {
	bookings map[string]domain.Booking
	payments map[uuid.UUID]domain.PaymentRecord
	order    []uuid.UUID
	holds    map[uuid.UUID]domain.HoldRecord
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		bookings: make(map[string]domain.Booking, len(s.bookings)),
		payments: make(map[uuid.UUID]domain.PaymentRecord, len(s.payments)),
		order:    append([]uuid.UUID(nil), s.order...),
		holds:    make(map[uuid.UUID]domain.HoldRecord, len(s.holds)),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.holds {
		snap.holds[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = snap.bookings
	s.payments = snap.payments
	s.order = snap.order
	s.holds = snap.holds
}

type txKey struct{}

type transactor struct {
	s *Store
}

func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

var _ repository.Transactor = (*transactor)(nil)
