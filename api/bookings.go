package api

import (
	"net/http"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/service/holds"
	"github.com/gin-gonic/gin"
)

// BookingHandler exposes the driver and rider decisions on a booking.
type BookingHandler struct {
	service holds.UseCase
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type captureResponse struct {
	BookingID       string `json:"booking_id"`
	PaymentID       string `json:"payment_id"`
	CaptureID       string `json:"capture_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	AlreadyCaptured bool   `json:"already_captured"`
}

type refundResponse struct {
	BookingID        string `json:"booking_id"`
	PaymentID        string `json:"payment_id"`
	Outcome          string `json:"outcome"`
	Reason           string `json:"reason"`
	Amount           int64  `json:"amount"`
	Fee              int64  `json:"fee"`
	Currency         string `json:"currency"`
	RefundID         string `json:"refund_id,omitempty"`
	AlreadyProcessed bool   `json:"already_processed"`
}

type cancelResponse struct {
	refundResponse
	RefundPercent int    `json:"refund_percent"`
	PolicyReason  string `json:"policy_reason"`
}

func NewBookingHandler(service holds.UseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/:id/accept", h.accept)
	router.POST("/:id/reject", h.reject)
	router.POST("/:id/cancel", h.cancel)
	router.POST("/:id/refund", h.refund)
}

func (h *BookingHandler) accept(c *gin.Context) {
	res, err := h.service.AcceptBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, captureResponse{
		BookingID:       res.BookingID,
		PaymentID:       res.PaymentID.String(),
		CaptureID:       res.CaptureID,
		Amount:          res.Amount.Amount,
		Currency:        res.Amount.Currency,
		AlreadyCaptured: res.AlreadyCaptured,
	})
}

func (h *BookingHandler) reject(c *gin.Context) {
	res, err := h.service.RejectBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRefundResponse(res))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	res, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, cancelResponse{
		refundResponse: toRefundResponse(&res.Refund),
		RefundPercent:  res.Policy.Percent,
		PolicyReason:   res.Policy.Reason,
	})
}

func (h *BookingHandler) refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := h.service.RefundHold(c.Request.Context(), c.Param("id"), domain.RefundReason(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRefundResponse(res))
}

func toRefundResponse(res *holds.RefundResult) refundResponse {
	return refundResponse{
		BookingID:        res.BookingID,
		PaymentID:        res.PaymentID.String(),
		Outcome:          string(res.Outcome),
		Reason:           string(res.Reason),
		Amount:           res.Amount.Amount,
		Fee:              res.Fee.Amount,
		Currency:         res.Amount.Currency,
		RefundID:         res.RefundID,
		AlreadyProcessed: res.AlreadyProcessed,
	}
}
