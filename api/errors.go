package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/ridehold/internal/cache"
	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error                  string `json:"error"`
	Code                   string `json:"code,omitempty"`
	ReconciliationRequired bool   `json:"reconciliation_required,omitempty"`
}

func statusFor(err error) int {
	var (
		validation *domain.ValidationError
		providerEr *domain.ProviderError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case domain.IsReconciliationRequired(err):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrHoldExpired),
		errors.Is(err, domain.ErrBookingClosed),
		errors.Is(err, domain.ErrBookingNotPending),
		errors.Is(err, domain.ErrActiveHoldExists),
		errors.Is(err, cache.ErrLockTimeout):
		return http.StatusConflict
	case errors.As(err, &providerEr):
		if providerEr.Transient {
			return http.StatusServiceUnavailable
		}
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	resp := errorResponse{
		Error:                  err.Error(),
		ReconciliationRequired: domain.IsReconciliationRequired(err),
	}
	if code, ok := domain.ProviderCode(err); ok {
		resp.Code = string(code)
	}
	c.JSON(statusFor(err), resp)
}
