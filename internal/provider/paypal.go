package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/ridehold/internal/domain"
)

const (
	OrderStatusCreated         = "CREATED"
	OrderStatusApproved        = "APPROVED"
	OrderStatusPayerActionReqd = "PAYER_ACTION_REQUIRED"
	OrderStatusCompleted       = "COMPLETED"

	AuthStatusCreated  = "CREATED"
	AuthStatusCaptured = "CAPTURED"
	AuthStatusVoided   = "VOIDED"
	AuthStatusExpired  = "EXPIRED"
)

type PayPalOrder struct {
	ID              string
	Status          string
	AuthorizationID string
}

type PayPalAuthorization struct {
	ID        string
	OrderID   string
	Status    string
	Amount    int64
	Currency  string
	CaptureID string
}

type PayPalCapture struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

type PayPalRefund struct {
	ID     string
	Status string
}

type OrderParams struct {
	Amount        int64
	Currency      string
	PaymentSource string
	CustomID      string
	RequestID     string
}

// PayPalAPI is the order-then-authorize back end: an order must be explicitly
// authorized and the resulting authorization is what gets captured or voided.
type PayPalAPI interface {
	CreateOrder(ctx context.Context, params OrderParams) (*PayPalOrder, error)
	GetOrder(ctx context.Context, orderID string) (*PayPalOrder, error)
	AuthorizeOrder(ctx context.Context, orderID string) (*PayPalAuthorization, error)
	GetAuthorization(ctx context.Context, authorizationID string) (*PayPalAuthorization, error)
	CaptureAuthorization(ctx context.Context, authorizationID string, amount *int64) (*PayPalCapture, error)
	VoidAuthorization(ctx context.Context, authorizationID string) error
	RefundCapture(ctx context.Context, captureID string, amount int64, currency, note, requestID string) (*PayPalRefund, error)
}

var paypalCodes = map[string]domain.ProviderErrorCode{
	"AUTHORIZATION_ALREADY_CAPTURED": domain.CodeAlreadyCaptured,
	"PREVIOUSLY_VOIDED":              domain.CodeAlreadyVoided,
	"AUTHORIZATION_VOIDED":           domain.CodeAlreadyVoided,
	"AUTHORIZATION_EXPIRED":          domain.CodeAuthorizationExpired,
	"CAPTURE_FULLY_REFUNDED":         domain.CodeAlreadyRefunded,
	"RESOURCE_NOT_FOUND":             domain.CodeReferenceNotFound,
	"INSTRUMENT_DECLINED":            domain.CodeDeclined,
	"ORDER_NOT_APPROVED":             domain.CodePayerActionRequired,
}

type PayPalAdapter struct {
	api PayPalAPI
}

func NewPayPalAdapter(api PayPalAPI) *PayPalAdapter {
	return &PayPalAdapter{api: api}
}

func (a *PayPalAdapter) Name() domain.PaymentProvider {
	return domain.ProviderPayPal
}

// Authorize creates the order and, when the payer already approved it, performs
// the explicit authorize in the same call. Otherwise the order id comes back
// with requires_action and ExplicitAuthorize must run before capture.
func (a *PayPalAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	order, err := a.api.CreateOrder(ctx, OrderParams{
		Amount:        req.Amount.Amount,
		Currency:      strings.ToUpper(req.Amount.Currency),
		PaymentSource: req.Method,
		CustomID:      req.Metadata["booking_id"],
		RequestID:     req.IdempotencyKey,
	})
	if err != nil {
		return Authorization{}, a.classify("create_order", err)
	}
	// a replayed request id returns the completed order of the first call
	if order.Status != OrderStatusApproved && order.Status != OrderStatusCompleted {
		return Authorization{Reference: order.ID, OrderID: order.ID, Status: domain.PaymentStatusRequiresAction}, nil
	}

	authID, err := a.ExplicitAuthorize(ctx, order.ID)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{Reference: authID, OrderID: order.ID, Status: domain.PaymentStatusAuthorized}, nil
}

func (a *PayPalAdapter) ExplicitAuthorize(ctx context.Context, orderRef string) (string, error) {
	if strings.TrimSpace(orderRef) == "" {
		return "", invalidReference(domain.ProviderPayPal, "authorize_order", orderRef)
	}
	auth, err := a.api.AuthorizeOrder(ctx, orderRef)
	if err == nil {
		return auth.ID, nil
	}
	if apiCode(err) != "ORDER_ALREADY_AUTHORIZED" {
		return "", a.classify("authorize_order", err)
	}

	order, getErr := a.api.GetOrder(ctx, orderRef)
	if getErr != nil {
		return "", a.classify("authorize_order", getErr)
	}
	if order.AuthorizationID == "" {
		return "", a.classify("authorize_order", err)
	}
	return order.AuthorizationID, nil
}

func (a *PayPalAdapter) Capture(ctx context.Context, ref string, amount *domain.Money) (CaptureResult, error) {
	if strings.TrimSpace(ref) == "" {
		return CaptureResult{}, invalidReference(domain.ProviderPayPal, "capture", ref)
	}
	var toCapture *int64
	if amount != nil {
		v := amount.Amount
		toCapture = &v
	}

	capture, err := a.api.CaptureAuthorization(ctx, ref, toCapture)
	if err == nil {
		return CaptureResult{
			CaptureID: capture.ID,
			Amount:    domain.Money{Amount: capture.Amount, Currency: capture.Currency},
		}, nil
	}
	if apiCode(err) != "AUTHORIZATION_ALREADY_CAPTURED" {
		return CaptureResult{}, a.classify("capture", err)
	}

	auth, getErr := a.api.GetAuthorization(ctx, ref)
	if getErr != nil {
		return CaptureResult{}, a.classify("capture", getErr)
	}
	return CaptureResult{
		CaptureID: auth.CaptureID,
		Amount:    domain.Money{Amount: auth.Amount, Currency: auth.Currency},
	}, nil
}

func (a *PayPalAdapter) Void(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return invalidReference(domain.ProviderPayPal, "void", ref)
	}
	err := a.api.VoidAuthorization(ctx, ref)
	switch apiCode(err) {
	case "PREVIOUSLY_VOIDED", "AUTHORIZATION_VOIDED":
		return nil
	}
	return a.classify("void", err)
}

// Refund acts on a capture id. Authorization ids are resolved to their capture
// first so callers falling back from a void can pass what they hold.
func (a *PayPalAdapter) Refund(ctx context.Context, ref string, amount domain.Money, reason string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", invalidReference(domain.ProviderPayPal, "refund", ref)
	}
	captureID := ref
	if auth, err := a.api.GetAuthorization(ctx, ref); err == nil {
		if auth.CaptureID == "" {
			return "", &domain.ProviderError{
				Provider: domain.ProviderPayPal,
				Op:       "refund",
				Code:     domain.CodeReferenceNotFound,
				Err:      fmt.Errorf("authorization %s has no capture", ref),
			}
		}
		captureID = auth.CaptureID
	}

	refund, err := a.api.RefundCapture(ctx, captureID, amount.Amount, strings.ToUpper(amount.Currency), reason,
		fmt.Sprintf("refund:%s:%d", captureID, amount.Amount))
	if err != nil {
		return "", a.classify("refund", err)
	}
	return refund.ID, nil
}

func (a *PayPalAdapter) classify(op string, err error) error {
	return classify(domain.ProviderPayPal, op, err, paypalCodes)
}

var _ Provider = (*PayPalAdapter)(nil)
