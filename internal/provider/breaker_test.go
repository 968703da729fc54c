package provider

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() domain.PaymentProvider {
	return domain.ProviderStripe
}

func (m *MockProvider) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Authorization), args.Error(1)
}

func (m *MockProvider) ExplicitAuthorize(ctx context.Context, orderRef string) (string, error) {
	args := m.Called(ctx, orderRef)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Capture(ctx context.Context, ref string, amount *domain.Money) (CaptureResult, error) {
	args := m.Called(ctx, ref, amount)
	return args.Get(0).(CaptureResult), args.Error(1)
}

func (m *MockProvider) Void(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockProvider) Refund(ctx context.Context, ref string, amount domain.Money, reason string) (string, error) {
	args := m.Called(ctx, ref, amount, reason)
	return args.String(0), args.Error(1)
}

func transientErr() error {
	return &domain.ProviderError{Provider: domain.ProviderStripe, Op: "void", Code: domain.CodeTimeout, Transient: true}
}

func TestBreaker_OpensAfterTransientFailures(t *testing.T) {
	ctx := context.Background()
	next := &MockProvider{}
	next.On("Void", ctx, "pi_1").Return(transientErr()).Times(2)

	b := NewBreaker(next, BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute})

	assert.Error(t, b.Void(ctx, "pi_1"))
	assert.Error(t, b.Void(ctx, "pi_1"))

	err := b.Void(ctx, "pi_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, domain.IsProviderTransient(err))
	next.AssertNumberOfCalls(t, "Void", 2)
}

func TestBreaker_TerminalErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	next := &MockProvider{}
	terminal := &domain.ProviderError{Provider: domain.ProviderStripe, Op: "void", Code: domain.CodeAlreadyCaptured}
	next.On("Void", ctx, "pi_1").Return(terminal)

	b := NewBreaker(next, BreakerConfig{FailureThreshold: 1})

	for i := 0; i < 3; i++ {
		err := b.Void(ctx, "pi_1")
		code, ok := domain.ProviderCode(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeAlreadyCaptured, code)
	}
	next.AssertNumberOfCalls(t, "Void", 3)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	ctx := context.Background()
	next := &MockProvider{}
	next.On("Void", ctx, "pi_1").Return(transientErr()).Once()
	next.On("Void", ctx, "pi_1").Return(nil)

	b := NewBreaker(next, BreakerConfig{FailureThreshold: 1, OpenTimeout: 20 * time.Millisecond})

	assert.Error(t, b.Void(ctx, "pi_1"))
	assert.ErrorIs(t, b.Void(ctx, "pi_1"), ErrCircuitOpen)
	assert.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	assert.NoError(t, b.Void(ctx, "pi_1"))
	assert.Equal(t, "closed", b.State())
	assert.NoError(t, b.Void(ctx, "pi_1"))
	next.AssertNumberOfCalls(t, "Void", 3)
}

func TestBreaker_PassesResultsThrough(t *testing.T) {
	ctx := context.Background()
	next := &MockProvider{}
	want := CaptureResult{CaptureID: "ch_1", Amount: domain.MustMoney(4000, "USD")}
	next.On("Capture", ctx, "pi_1", (*domain.Money)(nil)).Return(want, nil)
	next.On("Refund", ctx, "pi_1", want.Amount, "timeout").Return("re_1", nil)

	b := NewBreaker(next, BreakerConfig{})

	got, err := b.Capture(ctx, "pi_1", nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	refundID, err := b.Refund(ctx, "pi_1", want.Amount, "timeout")
	require.NoError(t, err)
	assert.Equal(t, "re_1", refundID)
	assert.Equal(t, domain.ProviderStripe, b.Name())
}
