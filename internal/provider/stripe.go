package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/ridehold/internal/domain"
)

const (
	IntentStatusRequiresCapture = "requires_capture"
	IntentStatusSucceeded       = "succeeded"
	IntentStatusCanceled        = "canceled"
)

type PaymentIntent struct {
	ID                 string
	Amount             int64
	AmountReceived     int64
	Currency           string
	Status             string
	LatestChargeID     string
	CancellationReason string
}

type IntentParams struct {
	Amount         int64
	Currency       string
	PaymentMethod  string
	CaptureMethod  string
	Metadata       map[string]string
	IdempotencyKey string
}

type RefundParams struct {
	PaymentIntent  string
	Charge         string
	Amount         int64
	Reason         string
	IdempotencyKey string
}

type StripeRefund struct {
	ID     string
	Amount int64
	Status string
}

// StripeAPI is the slice of the two-phase-native back end the adapter needs.
type StripeAPI interface {
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, id string, amountToCapture int64) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	CreateRefund(ctx context.Context, params RefundParams) (*StripeRefund, error)
}

var stripeCodes = map[string]domain.ProviderErrorCode{
	"card_declined":              domain.CodeDeclined,
	"resource_missing":           domain.CodeReferenceNotFound,
	"charge_already_refunded":    domain.CodeAlreadyRefunded,
	"charge_expired_for_capture": domain.CodeAuthorizationExpired,
}

// StripeAdapter is the two-phase-native variant: the payment intent itself
// holds the funds and is captured or cancelled in place.
type StripeAdapter struct {
	api StripeAPI
}

func NewStripeAdapter(api StripeAPI) *StripeAdapter {
	return &StripeAdapter{api: api}
}

func (a *StripeAdapter) Name() domain.PaymentProvider {
	return domain.ProviderStripe
}

func (a *StripeAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	intent, err := a.api.CreatePaymentIntent(ctx, IntentParams{
		Amount:         req.Amount.Amount,
		Currency:       strings.ToLower(req.Amount.Currency),
		PaymentMethod:  req.Method,
		CaptureMethod:  "manual",
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return Authorization{}, a.classify("authorize", err)
	}
	if intent.Status != IntentStatusRequiresCapture {
		return Authorization{}, &domain.ProviderError{
			Provider: domain.ProviderStripe,
			Op:       "authorize",
			Code:     domain.CodeDeclined,
			Err:      fmt.Errorf("payment intent %s in status %s", intent.ID, intent.Status),
		}
	}
	return Authorization{Reference: intent.ID, Status: domain.PaymentStatusAuthorized}, nil
}

// ExplicitAuthorize is an identity: intents are authorized on creation.
func (a *StripeAdapter) ExplicitAuthorize(_ context.Context, orderRef string) (string, error) {
	if !isIntentRef(orderRef) {
		return "", invalidReference(domain.ProviderStripe, "explicit_authorize", orderRef)
	}
	return orderRef, nil
}

func (a *StripeAdapter) Capture(ctx context.Context, ref string, amount *domain.Money) (CaptureResult, error) {
	if !isIntentRef(ref) {
		return CaptureResult{}, invalidReference(domain.ProviderStripe, "capture", ref)
	}
	var toCapture int64
	if amount != nil {
		toCapture = amount.Amount
	}

	intent, err := a.api.CapturePaymentIntent(ctx, ref, toCapture)
	if err != nil {
		if apiCode(err) != "payment_intent_unexpected_state" {
			return CaptureResult{}, a.classify("capture", err)
		}
		current, getErr := a.api.GetPaymentIntent(ctx, ref)
		if getErr != nil {
			return CaptureResult{}, a.classify("capture", getErr)
		}
		switch current.Status {
		case IntentStatusSucceeded:
			intent = current
		case IntentStatusCanceled:
			code := domain.CodeAlreadyVoided
			if current.CancellationReason == "automatic" {
				code = domain.CodeAuthorizationExpired
			}
			return CaptureResult{}, &domain.ProviderError{Provider: domain.ProviderStripe, Op: "capture", Code: code, Err: err}
		default:
			return CaptureResult{}, a.classify("capture", err)
		}
	}

	return CaptureResult{
		CaptureID: intent.LatestChargeID,
		Amount:    domain.Money{Amount: intent.AmountReceived, Currency: strings.ToUpper(intent.Currency)},
	}, nil
}

func (a *StripeAdapter) Void(ctx context.Context, ref string) error {
	if !isIntentRef(ref) {
		return invalidReference(domain.ProviderStripe, "void", ref)
	}
	_, err := a.api.CancelPaymentIntent(ctx, ref)
	if err == nil {
		return nil
	}
	if apiCode(err) != "payment_intent_unexpected_state" {
		return a.classify("void", err)
	}

	current, getErr := a.api.GetPaymentIntent(ctx, ref)
	if getErr != nil {
		return a.classify("void", getErr)
	}
	switch current.Status {
	case IntentStatusCanceled:
		return nil
	case IntentStatusSucceeded:
		return &domain.ProviderError{Provider: domain.ProviderStripe, Op: "void", Code: domain.CodeAlreadyCaptured, Err: err}
	}
	return a.classify("void", err)
}

func (a *StripeAdapter) Refund(ctx context.Context, ref string, amount domain.Money, reason string) (string, error) {
	params := RefundParams{
		Amount:         amount.Amount,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("refund:%s:%d", ref, amount.Amount),
	}
	switch {
	case isIntentRef(ref):
		params.PaymentIntent = ref
	case strings.HasPrefix(ref, "ch_"):
		params.Charge = ref
	default:
		return "", invalidReference(domain.ProviderStripe, "refund", ref)
	}

	refund, err := a.api.CreateRefund(ctx, params)
	if err != nil {
		return "", a.classify("refund", err)
	}
	return refund.ID, nil
}

func (a *StripeAdapter) classify(op string, err error) error {
	return classify(domain.ProviderStripe, op, err, stripeCodes)
}

func isIntentRef(ref string) bool {
	return strings.HasPrefix(ref, "pi_") && len(ref) > len("pi_")
}

var _ Provider = (*StripeAdapter)(nil)
