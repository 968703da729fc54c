package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Domenick1991/ridehold/internal/domain"
)

// APIError is the raw error a payment back end answers with.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func apiCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// classify turns a back end error into a ProviderError. codes maps the back
// end's own error codes to structured ones; unmapped 4xx answers are declines.
func classify(name domain.PaymentProvider, op string, err error, codes map[string]domain.ProviderErrorCode) error {
	if err == nil {
		return nil
	}
	pe := &domain.ProviderError{Provider: name, Op: op, Err: err}

	var apiErr *APIError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Code, pe.Transient = domain.CodeTimeout, true
	case errors.As(err, &netErr):
		pe.Code, pe.Transient = domain.CodeNetwork, true
		if netErr.Timeout() {
			pe.Code = domain.CodeTimeout
		}
	case errors.As(err, &apiErr):
		if code, ok := codes[apiErr.Code]; ok {
			pe.Code = code
			break
		}
		if apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests {
			pe.Code, pe.Transient = domain.CodeNetwork, true
			break
		}
		if apiErr.StatusCode == http.StatusNotFound {
			pe.Code = domain.CodeReferenceNotFound
			break
		}
		pe.Code = domain.CodeDeclined
	default:
		pe.Code, pe.Transient = domain.CodeNetwork, true
	}
	return pe
}

func invalidReference(name domain.PaymentProvider, op, ref string) error {
	return fmt.Errorf("%s %s %q: %w", name, op, ref, domain.ErrInvalidReference)
}
