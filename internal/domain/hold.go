package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "active"
	HoldStatusCaptured HoldStatus = "captured"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusRefunded HoldStatus = "refunded"
)

// HoldRecord tracks the reservation of funds separately from the payment
// state so expiry sweeps can use the narrow (status, expires_at) index.
type HoldRecord struct {
	ID         uuid.UUID
	BookingID  string
	PaymentID  uuid.UUID
	HoldAmount Money
	ExpiresAt  time.Time
	Status     HoldStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (h *HoldRecord) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// CancellationOutcome is the refund/fee split for a rider cancellation.
type CancellationOutcome struct {
	Refund  Money  `json:"refund"`
	Fee     Money  `json:"fee"`
	Percent int    `json:"percent"`
	Reason  string `json:"reason"`
}
