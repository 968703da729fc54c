// Package provider presents the two payment back ends behind one
// authorize/capture/void/refund capability interface.
package provider

import (
	"context"
	"fmt"

	"github.com/Domenick1991/ridehold/internal/domain"
)

// AuthorizeRequest carries one authorization attempt. IdempotencyKey must be
// unique per attempt: a retried request with the same key returns the object
// the first one created, whatever state it is in now.
type AuthorizeRequest struct {
	Amount         domain.Money
	Method         string
	IdempotencyKey string
	Metadata       map[string]string
}

// Authorization is the provider-side reservation. Reference is what capture and
// void act on; OrderID is set only by the order-then-authorize variant.
type Authorization struct {
	Reference string
	OrderID   string
	Status    domain.PaymentStatus
}

type CaptureResult struct {
	CaptureID string
	Amount    domain.Money
}

// Provider is implemented by both adapters. Capture, Void and Refund are
// idempotent: repeating them on a reference already in the target state
// returns the existing result.
type Provider interface {
	Name() domain.PaymentProvider
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
	// ExplicitAuthorize turns an order reference into an authorization reference.
	ExplicitAuthorize(ctx context.Context, orderRef string) (string, error)
	Capture(ctx context.Context, ref string, amount *domain.Money) (CaptureResult, error)
	Void(ctx context.Context, ref string) error
	Refund(ctx context.Context, ref string, amount domain.Money, reason string) (string, error)
}

// Registry resolves the adapter recorded on a payment.
type Registry struct {
	providers map[domain.PaymentProvider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.PaymentProvider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name domain.PaymentProvider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("payment provider %q is not configured", name)
	}
	return p, nil
}
