package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/repository"
	"github.com/google/uuid"
)

type bookingRepo struct {
	s *Store
}

func (r *bookingRepo) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, &domain.RecordNotFoundError{Entity: "booking", BookingID: id}
	}
	return &b, nil
}

func (r *bookingRepo) UpdateStatus(_ context.Context, id string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return &domain.RecordNotFoundError{Entity: "booking", BookingID: id}
	}
	b.Status = status
	b.PaymentStatus = paymentStatus
	b.UpdatedAt = r.s.now()
	r.s.bookings[id] = b
	return nil
}

func (r *bookingRepo) MarkAuthorized(_ context.Context, id string, paymentStatus domain.PaymentStatus, authorizedAt, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return &domain.RecordNotFoundError{Entity: "booking", BookingID: id}
	}
	b.PaymentStatus = paymentStatus
	b.PaymentAuthorizedAt = &authorizedAt
	b.PaymentExpiresAt = &expiresAt
	deadline := expiresAt
	b.ResponseDeadline = &deadline
	b.UpdatedAt = r.s.now()
	r.s.bookings[id] = b
	return nil
}

func (r *bookingRepo) TimeoutIfPending(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.Status != domain.BookingStatusPending {
		return false, nil
	}
	b.Status = domain.BookingStatusTimeoutCancelled
	b.UpdatedAt = r.s.now()
	r.s.bookings[id] = b
	return true, nil
}

func (r *bookingRepo) ListPendingPastDeadline(_ context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.Status == domain.BookingStatusPending && b.ResponseDeadline != nil && b.ResponseDeadline.Before(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponseDeadline.Before(*out[j].ResponseDeadline) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type paymentRepo struct {
	s *Store
}

func (r *paymentRepo) Create(_ context.Context, p *domain.PaymentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.s.payments[p.ID] = *p
	r.s.order = append(r.s.order, p.ID)
	return nil
}

func (r *paymentRepo) ListByBooking(_ context.Context, bookingID string) ([]domain.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.paymentsFor(bookingID), nil
}

func (r *paymentRepo) Update(_ context.Context, p *domain.PaymentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; !ok {
		return &domain.RecordNotFoundError{Entity: "payment", BookingID: p.BookingID}
	}
	p.UpdatedAt = r.s.now()
	r.s.payments[p.ID] = *p
	return nil
}

func (r *paymentRepo) ListInconsistent(_ context.Context, limit int) ([]domain.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PaymentRecord
	for _, id := range r.s.order {
		p := r.s.payments[id]
		hold, hasHold := r.s.holdByPayment(p.ID)
		holdActive := hasHold && hold.Status == domain.HoldStatusActive
		booking := r.s.bookings[p.BookingID]

		switch {
		case p.Status.IsSettled() && (booking.Status == domain.BookingStatusPending || holdActive):
			out = append(out, p)
		case p.Status.IsReleased() && holdActive:
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type holdRepo struct {
	s *Store
}

func (r *holdRepo) Create(_ context.Context, h *domain.HoldRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	h.CreatedAt = now
	h.UpdatedAt = now
	r.s.holds[h.ID] = *h
	return nil
}

func (r *holdRepo) GetByPayment(_ context.Context, paymentID uuid.UUID) (*domain.HoldRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.holdByPayment(paymentID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &h, nil
}

func (r *holdRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.HoldStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.holds[id]
	if !ok {
		return domain.ErrNotFound
	}
	h.Status = status
	h.UpdatedAt = r.s.now()
	r.s.holds[id] = h
	return nil
}

func (r *holdRepo) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]domain.HoldRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.HoldRecord
	for _, h := range r.s.holds {
		if h.Status == domain.HoldStatusActive && h.ExpiresAt.Before(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ repository.BookingRepository = (*bookingRepo)(nil)
	_ repository.PaymentRepository = (*paymentRepo)(nil)
	_ repository.HoldRepository    = (*holdRepo)(nil)
)
