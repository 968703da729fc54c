package domain

import "time"

type HoldOutcome string

const (
	OutcomeCaptured               HoldOutcome = "captured"
	OutcomeRefunded               HoldOutcome = "refunded"
	OutcomeVoided                 HoldOutcome = "voided"
	OutcomeReconciliationRequired HoldOutcome = "reconciliation_required"
)

// HoldEvent is emitted on every terminal hold transition for the external
// notification collaborator.
type HoldEvent struct {
	BookingID  string          `json:"booking_id"`
	PaymentID  string          `json:"payment_id,omitempty"`
	Outcome    HoldOutcome     `json:"outcome"`
	Amount     Money           `json:"amount"`
	Fee        *Money          `json:"fee,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Provider   PaymentProvider `json:"provider,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
