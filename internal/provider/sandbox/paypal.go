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
	PayPalOpCreateOrder   = "create_order"
	PayPalOpGetOrder      = "get_order"
	PayPalOpAuthorize     = "authorize_order"
	PayPalOpGetAuth       = "get_authorization"
	PayPalOpCapture       = "capture_authorization"
	PayPalOpVoid          = "void_authorization"
	PayPalOpRefundCapture = "refund_capture"
)

// RedirectSourcePrefix marks payment sources that need payer approval before
// the order can be authorized.
const RedirectSourcePrefix = "redirect:"

type paypalOrder struct {
	provider.PayPalOrder
	amount   int64
	currency string
}

type paypalAuth struct {
	provider.PayPalAuthorization
	createdAt time.Time
}

type paypalCapture struct {
	provider.PayPalCapture
	refunded int64
}

type PayPal struct {
	base
	manualApproval bool
	orders         map[string]*paypalOrder
	orderRequests  map[string]string
	auths          map[string]*paypalAuth
	captures       map[string]*paypalCapture
	refunds        map[string]*provider.PayPalRefund
}

type PayPalOption func(*PayPal)

// WithManualApproval keeps redirect orders in PAYER_ACTION_REQUIRED until
// Approve is called. By default the payer is assumed to approve right away.
func WithManualApproval() PayPalOption {
	return func(p *PayPal) { p.manualApproval = true }
}

func NewPayPal(popts []PayPalOption, opts ...Option) *PayPal {
	p := &PayPal{
		orders:        make(map[string]*paypalOrder),
		orderRequests: make(map[string]string),
		auths:         make(map[string]*paypalAuth),
		captures:      make(map[string]*paypalCapture),
		refunds:       make(map[string]*provider.PayPalRefund),
	}
	p.init(opts)
	for _, opt := range popts {
		opt(p)
	}
	return p
}

func (p *PayPal) CreateOrder(_ context.Context, params provider.OrderParams) (*provider.PayPalOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpCreateOrder); err != nil {
		return nil, err
	}

	if id, ok := p.orderRequests[params.RequestID]; ok && params.RequestID != "" {
		out := p.orders[id].PayPalOrder
		return &out, nil
	}
	if params.Amount <= 0 {
		return nil, &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "INVALID_PARAMETER_VALUE", Message: "amount must be positive"}
	}

	status := provider.OrderStatusApproved
	if strings.HasPrefix(params.PaymentSource, RedirectSourcePrefix) {
		status = provider.OrderStatusPayerActionReqd
	}
	order := &paypalOrder{
		PayPalOrder: provider.PayPalOrder{
			ID:     fmt.Sprintf("ORDER-%06d", p.nextSeq()),
			Status: status,
		},
		amount:   params.Amount,
		currency: params.Currency,
	}
	p.orders[order.ID] = order
	if params.RequestID != "" {
		p.orderRequests[params.RequestID] = order.ID
	}
	out := order.PayPalOrder
	return &out, nil
}

// Approve simulates the payer finishing the redirect flow.
func (p *PayPal) Approve(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if order, ok := p.orders[orderID]; ok && order.Status == provider.OrderStatusPayerActionReqd {
		order.Status = provider.OrderStatusApproved
	}
}

func (p *PayPal) GetOrder(_ context.Context, orderID string) (*provider.PayPalOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpGetOrder); err != nil {
		return nil, err
	}

	order, ok := p.orders[orderID]
	if !ok {
		return nil, notFound("order", orderID)
	}
	out := order.PayPalOrder
	return &out, nil
}

func (p *PayPal) AuthorizeOrder(_ context.Context, orderID string) (*provider.PayPalAuthorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpAuthorize); err != nil {
		return nil, err
	}

	order, ok := p.orders[orderID]
	if !ok {
		return nil, notFound("order", orderID)
	}
	if order.AuthorizationID != "" {
		return nil, &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "ORDER_ALREADY_AUTHORIZED", Message: "order already authorized"}
	}
	if order.Status == provider.OrderStatusPayerActionReqd && !p.manualApproval {
		order.Status = provider.OrderStatusApproved
	}
	if order.Status != provider.OrderStatusApproved {
		return nil, &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "ORDER_NOT_APPROVED", Message: "payer has not approved the order"}
	}

	auth := &paypalAuth{
		PayPalAuthorization: provider.PayPalAuthorization{
			ID:       fmt.Sprintf("AUTH-%06d", p.nextSeq()),
			OrderID:  orderID,
			Status:   provider.AuthStatusCreated,
			Amount:   order.amount,
			Currency: order.currency,
		},
		createdAt: p.now(),
	}
	p.auths[auth.ID] = auth
	order.AuthorizationID = auth.ID
	order.Status = provider.OrderStatusCompleted

	out := auth.PayPalAuthorization
	return &out, nil
}

func (p *PayPal) GetAuthorization(_ context.Context, authorizationID string) (*provider.PayPalAuthorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpGetAuth); err != nil {
		return nil, err
	}

	auth, err := p.lookupAuth(authorizationID)
	if err != nil {
		return nil, err
	}
	out := auth.PayPalAuthorization
	return &out, nil
}

func (p *PayPal) CaptureAuthorization(_ context.Context, authorizationID string, amount *int64) (*provider.PayPalCapture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpCapture); err != nil {
		return nil, err
	}

	auth, err := p.lookupAuth(authorizationID)
	if err != nil {
		return nil, err
	}
	if err := authStateError(auth); err != nil {
		return nil, err
	}
	value := auth.Amount
	if amount != nil && *amount > 0 {
		value = *amount
	}
	if value > auth.Amount {
		return nil, &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "MAX_CAPTURE_AMOUNT_EXCEEDED", Message: "capture exceeds authorization"}
	}

	capture := &paypalCapture{PayPalCapture: provider.PayPalCapture{
		ID:       fmt.Sprintf("CAPTURE-%06d", p.nextSeq()),
		Status:   "COMPLETED",
		Amount:   value,
		Currency: auth.Currency,
	}}
	p.captures[capture.ID] = capture
	auth.Status = provider.AuthStatusCaptured
	auth.CaptureID = capture.ID

	out := capture.PayPalCapture
	return &out, nil
}

func (p *PayPal) VoidAuthorization(_ context.Context, authorizationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpVoid); err != nil {
		return err
	}

	auth, err := p.lookupAuth(authorizationID)
	if err != nil {
		return err
	}
	if auth.Status == provider.AuthStatusVoided {
		return &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "PREVIOUSLY_VOIDED", Message: "authorization previously voided"}
	}
	if err := authStateError(auth); err != nil {
		return err
	}
	auth.Status = provider.AuthStatusVoided
	return nil
}

func (p *PayPal) RefundCapture(_ context.Context, captureID string, amount int64, currency, note, requestID string) (*provider.PayPalRefund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(PayPalOpRefundCapture); err != nil {
		return nil, err
	}

	if r, ok := p.refunds[requestID]; ok && requestID != "" {
		out := *r
		return &out, nil
	}
	capture, ok := p.captures[captureID]
	if !ok {
		return nil, notFound("capture", captureID)
	}
	remaining := capture.Amount - capture.refunded
	if remaining <= 0 {
		return nil, &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "CAPTURE_FULLY_REFUNDED", Message: "capture already fully refunded"}
	}
	if amount <= 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "REFUND_AMOUNT_EXCEEDED", Message: "refund exceeds captured amount"}
	}

	capture.refunded += amount
	refund := &provider.PayPalRefund{ID: fmt.Sprintf("REFUND-%06d", p.nextSeq()), Status: "COMPLETED"}
	if requestID != "" {
		p.refunds[requestID] = refund
	}
	out := *refund
	return &out, nil
}

// Refunded reports the total refunded against a capture.
func (p *PayPal) Refunded(captureID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.captures[captureID]; ok {
		return c.refunded
	}
	return 0
}

// lookupAuth must be called with mu held.
func (p *PayPal) lookupAuth(id string) (*paypalAuth, error) {
	auth, ok := p.auths[id]
	if !ok {
		return nil, notFound("authorization", id)
	}
	if auth.Status == provider.AuthStatusCreated && p.now().After(auth.createdAt.Add(p.authWindow)) {
		auth.Status = provider.AuthStatusExpired
	}
	return auth, nil
}

func authStateError(auth *paypalAuth) error {
	switch auth.Status {
	case provider.AuthStatusCaptured:
		return &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "AUTHORIZATION_ALREADY_CAPTURED", Message: "authorization already captured"}
	case provider.AuthStatusVoided:
		return &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "AUTHORIZATION_VOIDED", Message: "authorization voided"}
	case provider.AuthStatusExpired:
		return &provider.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "AUTHORIZATION_EXPIRED", Message: "authorization expired"}
	}
	return nil
}

func notFound(kind, id string) error {
	return &provider.APIError{StatusCode: http.StatusNotFound, Code: "RESOURCE_NOT_FOUND", Message: kind + " " + id + " not found"}
}

var _ provider.PayPalAPI = (*PayPal)(nil)
