package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/ridehold/internal/provider"
)

const (
	StripeOpCreateIntent = "create_intent"
	StripeOpGetIntent    = "get_intent"
	StripeOpCapture      = "capture"
	StripeOpCancel       = "cancel"
	StripeOpRefund       = "refund"
)

// DeclinedCardMethod makes CreatePaymentIntent fail with card_declined.
const DeclinedCardMethod = "pm_card_chargeDeclined"

type stripeIntent struct {
	provider.PaymentIntent
	createdAt time.Time
	refunded  int64
}

type Stripe struct {
	base
	intents        map[string]*stripeIntent
	chargeToIntent map[string]string
	intentKeys     map[string]string
	refunds        map[string]*provider.StripeRefund
}

func NewStripe(opts ...Option) *Stripe {
	s := &Stripe{
		intents:        make(map[string]*stripeIntent),
		chargeToIntent: make(map[string]string),
		intentKeys:     make(map[string]string),
		refunds:        make(map[string]*provider.StripeRefund),
	}
	s.init(opts)
	return s
}

func (s *Stripe) CreatePaymentIntent(_ context.Context, params provider.IntentParams) (*provider.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(StripeOpCreateIntent); err != nil {
		return nil, err
	}

	if id, ok := s.intentKeys[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		out := s.intents[id].PaymentIntent
		return &out, nil
	}
	if params.Amount <= 0 {
		return nil, &provider.APIError{StatusCode: http.StatusBadRequest, Code: "parameter_invalid_integer", Message: "amount must be positive"}
	}
	if params.PaymentMethod == DeclinedCardMethod {
		return nil, &provider.APIError{StatusCode: http.StatusPaymentRequired, Code: "card_declined", Message: "your card was declined"}
	}

	id := fmt.Sprintf("pi_sandbox_%06d", s.nextSeq())
	intent := &stripeIntent{
		PaymentIntent: provider.PaymentIntent{
			ID:       id,
			Amount:   params.Amount,
			Currency: strings.ToLower(params.Currency),
			Status:   provider.IntentStatusRequiresCapture,
		},
		createdAt: s.now(),
	}
	s.intents[id] = intent
	if params.IdempotencyKey != "" {
		s.intentKeys[params.IdempotencyKey] = id
	}
	out := intent.PaymentIntent
	return &out, nil
}

func (s *Stripe) GetPaymentIntent(_ context.Context, id string) (*provider.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(StripeOpGetIntent); err != nil {
		return nil, err
	}

	intent, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	out := intent.PaymentIntent
	return &out, nil
}

func (s *Stripe) CapturePaymentIntent(_ context.Context, id string, amountToCapture int64) (*provider.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(StripeOpCapture); err != nil {
		return nil, err
	}

	intent, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if intent.Status != provider.IntentStatusRequiresCapture {
		return nil, unexpectedState(intent)
	}
	if amountToCapture <= 0 {
		amountToCapture = intent.Amount
	}
	if amountToCapture > intent.Amount {
		return nil, &provider.APIError{StatusCode: http.StatusBadRequest, Code: "amount_too_large", Message: "capture exceeds authorized amount"}
	}

	chargeID := fmt.Sprintf("ch_sandbox_%06d", s.nextSeq())
	intent.Status = provider.IntentStatusSucceeded
	intent.AmountReceived = amountToCapture
	intent.LatestChargeID = chargeID
	s.chargeToIntent[chargeID] = id

	out := intent.PaymentIntent
	return &out, nil
}

func (s *Stripe) CancelPaymentIntent(_ context.Context, id string) (*provider.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(StripeOpCancel); err != nil {
		return nil, err
	}

	intent, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if intent.Status != provider.IntentStatusRequiresCapture {
		return nil, unexpectedState(intent)
	}
	intent.Status = provider.IntentStatusCanceled
	intent.CancellationReason = "requested_by_customer"

	out := intent.PaymentIntent
	return &out, nil
}

func (s *Stripe) CreateRefund(_ context.Context, params provider.RefundParams) (*provider.StripeRefund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(StripeOpRefund); err != nil {
		return nil, err
	}

	if r, ok := s.refunds[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		out := *r
		return &out, nil
	}

	intentID := params.PaymentIntent
	if params.Charge != "" {
		intentID = s.chargeToIntent[params.Charge]
	}
	intent, err := s.lookup(intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != provider.IntentStatusSucceeded {
		return nil, &provider.APIError{StatusCode: http.StatusBadRequest, Code: "charge_not_captured", Message: "payment intent has no successful charge"}
	}
	remaining := intent.AmountReceived - intent.refunded
	if remaining <= 0 {
		return nil, &provider.APIError{StatusCode: http.StatusBadRequest, Code: "charge_already_refunded", Message: "charge has already been refunded"}
	}
	amount := params.Amount
	if amount <= 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, &provider.APIError{StatusCode: http.StatusBadRequest, Code: "amount_too_large", Message: "refund exceeds remaining amount"}
	}

	intent.refunded += amount
	refund := &provider.StripeRefund{
		ID:     fmt.Sprintf("re_sandbox_%06d", s.nextSeq()),
		Amount: amount,
		Status: "succeeded",
	}
	if params.IdempotencyKey != "" {
		s.refunds[params.IdempotencyKey] = refund
	}
	out := *refund
	return &out, nil
}

// Refunded reports the total refunded against an intent.
func (s *Stripe) Refunded(intentID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[intentID]; ok {
		return intent.refunded
	}
	return 0
}

// lookup must be called with mu held. Uncaptured intents past the window are
// cancelled automatically, the way the real provider expires them.
func (s *Stripe) lookup(id string) (*stripeIntent, error) {
	intent, ok := s.intents[id]
	if !ok {
		return nil, &provider.APIError{StatusCode: http.StatusNotFound, Code: "resource_missing", Message: "no such payment_intent: " + id}
	}
	if intent.Status == provider.IntentStatusRequiresCapture && s.now().After(intent.createdAt.Add(s.authWindow)) {
		intent.Status = provider.IntentStatusCanceled
		intent.CancellationReason = "automatic"
	}
	return intent, nil
}

func unexpectedState(intent *stripeIntent) error {
	return &provider.APIError{
		StatusCode: http.StatusBadRequest,
		Code:       "payment_intent_unexpected_state",
		Message:    fmt.Sprintf("payment intent %s has status %s", intent.ID, intent.Status),
	}
}

var _ provider.StripeAPI = (*Stripe)(nil)
