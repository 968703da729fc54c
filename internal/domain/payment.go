package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
)

func (p PaymentProvider) Valid() bool {
	return p == ProviderStripe || p == ProviderPayPal
}

type PaymentStatus string

const (
	PaymentStatusCreated         PaymentStatus = "created"
	PaymentStatusRequiresAction  PaymentStatus = "requires_action"
	PaymentStatusAuthorized      PaymentStatus = "authorized"
	PaymentStatusRequiresCapture PaymentStatus = "requires_capture"
	PaymentStatusCaptured        PaymentStatus = "captured"
	PaymentStatusCompleted       PaymentStatus = "completed"
	PaymentStatusRefunded        PaymentStatus = "refunded"
	PaymentStatusCancelled       PaymentStatus = "cancelled"
	PaymentStatusVoided          PaymentStatus = "voided"
	PaymentStatusFailed          PaymentStatus = "failed"
)

// IsActive reports whether funds are still reserved and capturable.
func (s PaymentStatus) IsActive() bool {
	switch s {
	case PaymentStatusAuthorized, PaymentStatusRequiresCapture, PaymentStatusRequiresAction:
		return true
	}
	return false
}

// IsSettled reports whether money already moved to the marketplace.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusCaptured || s == PaymentStatusCompleted
}

// IsReleased reports whether the payment was already given back to the rider.
func (s PaymentStatus) IsReleased() bool {
	switch s {
	case PaymentStatusRefunded, PaymentStatusCancelled, PaymentStatusVoided:
		return true
	}
	return false
}

type RefundReason string

const (
	RefundReasonDriverRejected     RefundReason = "driver_rejected"
	RefundReasonTimeout            RefundReason = "timeout"
	RefundReasonPassengerCancelled RefundReason = "passenger_cancelled"
)

func (r RefundReason) Valid() bool {
	switch r {
	case RefundReasonDriverRejected, RefundReasonTimeout, RefundReasonPassengerCancelled:
		return true
	}
	return false
}

// PaymentRecord is one attempted payment for a booking. Provider is fixed at
// creation and drives every later provider call.
type PaymentRecord struct {
	ID              uuid.UUID
	BookingID       string
	UserID          string
	Amount          Money
	Provider        PaymentProvider
	PaymentMethod   string
	PaymentIntentID string // stripe intent id or paypal order id
	AuthorizationID string // paypal authorization id
	TransactionID   string // capture id once money moved
	RefundID        string
	Status          PaymentStatus
	RefundAmount    int64
	CancellationFee int64
	RefundReason    RefundReason
	CreatedAt       time.Time
	CapturedAt      *time.Time
	RefundedAt      *time.Time
	ExpiresAt       time.Time
	UpdatedAt       time.Time
}

// ProviderReference is the id capture and void act on.
func (p *PaymentRecord) ProviderReference() string {
	if p.AuthorizationID != "" {
		return p.AuthorizationID
	}
	return p.PaymentIntentID
}

// SettledReference is the id a refund acts on once the payment is captured.
func (p *PaymentRecord) SettledReference() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.ProviderReference()
}
