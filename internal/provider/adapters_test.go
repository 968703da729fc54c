package provider_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/provider"
	"github.com/Domenick1991/ridehold/internal/provider/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorizeReq(method string) provider.AuthorizeRequest {
	return provider.AuthorizeRequest{
		Amount:         domain.MustMoney(4000, "USD"),
		Method:         method,
		IdempotencyKey: "pay-" + method,
		Metadata:       map[string]string{"booking_id": "b-1"},
	}
}

func TestStripeAdapter_AuthorizeCaptureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	api := sandbox.NewStripe()
	adapter := provider.NewStripeAdapter(api)

	auth, err := adapter.Authorize(ctx, authorizeReq("pm_card_visa"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAuthorized, auth.Status)
	assert.Empty(t, auth.OrderID)

	first, err := adapter.Capture(ctx, auth.Reference, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), first.Amount.Amount)
	assert.Equal(t, "USD", first.Amount.Currency)

	second, err := adapter.Capture(ctx, auth.Reference, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStripeAdapter_VoidAfterCaptureReportsAlreadyCaptured(t *testing.T) {
	ctx := context.Background()
	adapter := provider.NewStripeAdapter(sandbox.NewStripe())

	auth, err := adapter.Authorize(ctx, authorizeReq("pm_card_visa"))
	require.NoError(t, err)
	_, err = adapter.Capture(ctx, auth.Reference, nil)
	require.NoError(t, err)

	err = adapter.Void(ctx, auth.Reference)
	code, ok := domain.ProviderCode(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeAlreadyCaptured, code)
}

func TestStripeAdapter_VoidTwiceSucceeds(t *testing.T) {
	ctx := context.Background()
	adapter := provider.NewStripeAdapter(sandbox.NewStripe())

	auth, err := adapter.Authorize(ctx, authorizeReq("pm_card_visa"))
	require.NoError(t, err)

	require.NoError(t, adapter.Void(ctx, auth.Reference))
	require.NoError(t, adapter.Void(ctx, auth.Reference))
}

func TestStripeAdapter_RefundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	api := sandbox.NewStripe()
	adapter := provider.NewStripeAdapter(api)

	auth, err := adapter.Authorize(ctx, authorizeReq("pm_card_visa"))
	require.NoError(t, err)
	capture, err := adapter.Capture(ctx, auth.Reference, nil)
	require.NoError(t, err)

	amount := domain.MustMoney(1500, "USD")
	first, err := adapter.Refund(ctx, capture.CaptureID, amount, "requested_by_customer")
	require.NoError(t, err)
	second, err := adapter.Refund(ctx, capture.CaptureID, amount, "requested_by_customer")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1500), api.Refunded(auth.Reference))
}

func TestStripeAdapter_Declined(t *testing.T) {
	adapter := provider.NewStripeAdapter(sandbox.NewStripe())

	_, err := adapter.Authorize(context.Background(), authorizeReq(sandbox.DeclinedCardMethod))

	code, ok := domain.ProviderCode(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeDeclined, code)
}

func TestStripeAdapter_ExpiredAuthorization(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	api := sandbox.NewStripe(sandbox.WithClock(func() time.Time { return now }), sandbox.WithAuthorizationWindow(time.Hour))
	adapter := provider.NewStripeAdapter(api)

	auth, err := adapter.Authorize(ctx, authorizeReq("pm_card_visa"))
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = adapter.Capture(ctx, auth.Reference, nil)

	code, ok := domain.ProviderCode(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeAuthorizationExpired, code)
}

func TestStripeAdapter_InvalidReference(t *testing.T) {
	adapter := provider.NewStripeAdapter(sandbox.NewStripe())

	_, err := adapter.Capture(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	err = adapter.Void(context.Background(), "ORDER-1")
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestStripeAdapter_ServerErrorIsTransient(t *testing.T) {
	api := sandbox.NewStripe()
	api.FailNext(sandbox.StripeOpCreateIntent, &provider.APIError{StatusCode: http.StatusBadGateway, Code: "api_error"})
	adapter := provider.NewStripeAdapter(api)

	_, err := adapter.Authorize(context.Background(), authorizeReq("pm_card_visa"))

	assert.True(t, domain.IsProviderTransient(err))
}

func TestPayPalAdapter_ApprovedOrderAuthorizesInOneCall(t *testing.T) {
	ctx := context.Background()
	api := sandbox.NewPayPal(nil)
	adapter := provider.NewPayPalAdapter(api)

	auth, err := adapter.Authorize(ctx, authorizeReq("vault:pp-123"))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusAuthorized, auth.Status)
	assert.NotEqual(t, auth.OrderID, auth.Reference)
	assert.Equal(t, 1, api.Calls(sandbox.PayPalOpCreateOrder))
	assert.Equal(t, 1, api.Calls(sandbox.PayPalOpAuthorize))
}

func TestPayPalAdapter_RedirectOrderRequiresAction(t *testing.T) {
	ctx := context.Background()
	api := sandbox.NewPayPal([]sandbox.PayPalOption{sandbox.WithManualApproval()})
	adapter := provider.NewPayPalAdapter(api)

	auth, err := adapter.Authorize(ctx, authorizeReq(sandbox.RedirectSourcePrefix+"https://return"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRequiresAction, auth.Status)
	assert.Equal(t, auth.OrderID, auth.Reference)

	_, err = adapter.ExplicitAuthorize(ctx, auth.OrderID)
	code, ok := domain.ProviderCode(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodePayerActionRequired, code)

	api.Approve(auth.OrderID)
	authID, err := adapter.ExplicitAuthorize(ctx, auth.OrderID)
	require.NoError(t, err)

	again, err := adapter.ExplicitAuthorize(ctx, auth.OrderID)
	require.NoError(t, err)
	assert.Equal(t, authID, again)
}

func TestPayPalAdapter_CaptureVoidRefund(t *testing.T) {
	ctx := context.Background()
	api := sandbox.NewPayPal(nil)
	adapter := provider.NewPayPalAdapter(api)

	auth, err := adapter.Authorize(ctx, authorizeReq("vault:pp-123"))
	require.NoError(t, err)

	capture, err := adapter.Capture(ctx, auth.Reference, nil)
	require.NoError(t, err)
	again, err := adapter.Capture(ctx, auth.Reference, nil)
	require.NoError(t, err)
	assert.Equal(t, capture.CaptureID, again.CaptureID)
	assert.Equal(t, int64(4000), again.Amount.Amount)

	err = adapter.Void(ctx, auth.Reference)
	code, ok := domain.ProviderCode(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeAlreadyCaptured, code)

	// Refunding by authorization id resolves to the capture.
	refundID, err := adapter.Refund(ctx, auth.Reference, domain.MustMoney(4000, "USD"), "timeout")
	require.NoError(t, err)
	assert.NotEmpty(t, refundID)
	assert.Equal(t, int64(4000), api.Refunded(capture.CaptureID))
	assert.Equal(t, 1, api.Calls(sandbox.PayPalOpRefundCapture))
}

func TestPayPalAdapter_VoidTwiceSucceeds(t *testing.T) {
	ctx := context.Background()
	adapter := provider.NewPayPalAdapter(sandbox.NewPayPal(nil))

	auth, err := adapter.Authorize(ctx, authorizeReq("vault:pp-123"))
	require.NoError(t, err)

	require.NoError(t, adapter.Void(ctx, auth.Reference))
	require.NoError(t, adapter.Void(ctx, auth.Reference))
}

func TestPayPalAdapter_MissingReference(t *testing.T) {
	adapter := provider.NewPayPalAdapter(sandbox.NewPayPal(nil))

	_, err := adapter.Refund(context.Background(), " ", domain.MustMoney(100, "USD"), "timeout")

	assert.True(t, errors.Is(err, domain.ErrInvalidReference))
}

func TestRegistry(t *testing.T) {
	reg := provider.NewRegistry(provider.NewStripeAdapter(sandbox.NewStripe()))

	p, err := reg.Get(domain.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, p.Name())

	_, err = reg.Get(domain.ProviderPayPal)
	assert.Error(t, err)
}

func TestAdapters_IdempotencyKeyScopesAuthorization(t *testing.T) {
	ctx := context.Background()
	adapters := []provider.Provider{
		provider.NewStripeAdapter(sandbox.NewStripe()),
		provider.NewPayPalAdapter(sandbox.NewPayPal(nil)),
	}
	for _, adapter := range adapters {
		t.Run(string(adapter.Name()), func(t *testing.T) {
			req := authorizeReq("vault:pp-123")
			if adapter.Name() == domain.ProviderStripe {
				req = authorizeReq("pm_card_visa")
			}

			first, err := adapter.Authorize(ctx, req)
			require.NoError(t, err)
			again, err := adapter.Authorize(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, first.Reference, again.Reference)

			req.IdempotencyKey = "pay-next"
			next, err := adapter.Authorize(ctx, req)
			require.NoError(t, err)
			assert.NotEqual(t, first.Reference, next.Reference)
		})
	}
}
