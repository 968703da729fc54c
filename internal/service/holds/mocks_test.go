package holds

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/provider"
	"github.com/Domenick1991/ridehold/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
	name domain.PaymentProvider
}

func (m *MockProvider) Name() domain.PaymentProvider {
	return m.name
}

func (m *MockProvider) Authorize(ctx context.Context, req provider.AuthorizeRequest) (provider.Authorization, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(provider.Authorization), args.Error(1)
}

func (m *MockProvider) ExplicitAuthorize(ctx context.Context, orderRef string) (string, error) {
	args := m.Called(ctx, orderRef)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Capture(ctx context.Context, ref string, amount *domain.Money) (provider.CaptureResult, error) {
	args := m.Called(ctx, ref, amount)
	return args.Get(0).(provider.CaptureResult), args.Error(1)
}

func (m *MockProvider) Void(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockProvider) Refund(ctx context.Context, ref string, amount domain.Money, reason string) (string, error) {
	args := m.Called(ctx, ref, amount, reason)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishHoldEvent(ctx context.Context, event domain.HoldEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Events returns the published events in order.
func (m *MockPublisher) Events() []domain.HoldEvent {
	var out []domain.HoldEvent
	for _, c := range m.Calls {
		if c.Method == "PublishHoldEvent" {
			out = append(out, c.Arguments.Get(1).(domain.HoldEvent))
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingBookings fails status updates while err is set.
type failingBookings struct {
	repository.BookingRepository
	mu  sync.Mutex
	err error
}

func (f *failingBookings) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) error {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.BookingRepository.UpdateStatus(ctx, id, status, paymentStatus)
}

func (f *failingBookings) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// failMarkAuthorizedOnce fails the first MarkAuthorized call only.
type failMarkAuthorizedOnce struct {
	repository.BookingRepository
	mu     sync.Mutex
	failed bool
}

func (f *failMarkAuthorizedOnce) MarkAuthorized(ctx context.Context, id string, paymentStatus domain.PaymentStatus, authorizedAt, expiresAt time.Time) error {
	f.mu.Lock()
	first := !f.failed
	f.failed = true
	f.mu.Unlock()
	if first {
		return assert.AnError
	}
	return f.BookingRepository.MarkAuthorized(ctx, id, paymentStatus, authorizedAt, expiresAt)
}
