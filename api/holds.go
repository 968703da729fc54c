package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/service/holds"
	"github.com/gin-gonic/gin"
)

type HoldHandler struct {
	service holds.UseCase
}

type createHoldRequest struct {
	BookingID     string `json:"booking_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	Provider      string `json:"provider"`
}

type holdResponse struct {
	PaymentID         string `json:"payment_id"`
	HoldID            string `json:"hold_id"`
	BookingID         string `json:"booking_id"`
	Provider          string `json:"provider"`
	Status            string `json:"status"`
	ProviderReference string `json:"provider_reference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	ExpiresAt         string `json:"expires_at"`
}

func NewHoldHandler(service holds.UseCase) *HoldHandler {
	return &HoldHandler{service: service}
}

func (h *HoldHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
}

func (h *HoldHandler) create(c *gin.Context) {
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := h.service.CreateHold(c.Request.Context(), holds.CreateHoldInput{
		BookingID: req.BookingID,
		UserID:    req.UserID,
		Amount:    domain.Money{Amount: req.Amount, Currency: req.Currency},
		Method:    req.PaymentMethod,
		Provider:  domain.PaymentProvider(req.Provider),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, holdResponse{
		PaymentID:         res.Payment.ID.String(),
		HoldID:            res.Hold.ID.String(),
		BookingID:         res.Payment.BookingID,
		Provider:          string(res.Payment.Provider),
		Status:            string(res.Payment.Status),
		ProviderReference: res.Payment.ProviderReference(),
		Amount:            res.Payment.Amount.Amount,
		Currency:          res.Payment.Amount.Currency,
		ExpiresAt:         res.Hold.ExpiresAt.Format(time.RFC3339),
	})
}
