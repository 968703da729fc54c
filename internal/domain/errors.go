package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrHoldExpired       = errors.New("hold expired")
	ErrActiveHoldExists  = errors.New("booking already has an active hold")
	ErrBookingNotPending = errors.New("booking is not pending")
	ErrBookingClosed     = errors.New("booking is already closed")
	ErrNotFound          = errors.New("record not found")
	ErrInvalidReference  = errors.New("provider reference is missing or malformed")
)

// ValidationError rejects input before any external call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type ProviderErrorCode string

const (
	CodeAlreadyCaptured      ProviderErrorCode = "already_captured"
	CodeAlreadyVoided        ProviderErrorCode = "already_voided"
	CodeAlreadyRefunded      ProviderErrorCode = "already_refunded"
	CodeAuthorizationExpired ProviderErrorCode = "authorization_expired"
	CodeDeclined             ProviderErrorCode = "declined"
	CodePayerActionRequired  ProviderErrorCode = "payer_action_required"
	CodeReferenceNotFound    ProviderErrorCode = "not_found"
	CodeNetwork              ProviderErrorCode = "network"
	CodeTimeout              ProviderErrorCode = "timeout"
	CodeCircuitOpen          ProviderErrorCode = "circuit_open"
)

// ProviderError is returned by every provider adapter. Transient errors may be
// retried by the caller; terminal ones carry a Code the hold manager acts on.
type ProviderError struct {
	Provider  PaymentProvider
	Op        string
	Code      ProviderErrorCode
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	msg := fmt.Sprintf("%s %s: %s provider error (%s)", e.Provider, e.Op, kind, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func IsProviderTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// ProviderCode returns the structured code of a terminal provider error.
func ProviderCode(err error) (ProviderErrorCode, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && !pe.Transient {
		return pe.Code, true
	}
	return "", false
}

// RecordNotFoundError carries enough context for operators to see what the
// booking actually has on file.
type RecordNotFoundError struct {
	Entity       string
	BookingID    string
	PaymentCount int
	Statuses     []PaymentStatus
}

func (e *RecordNotFoundError) Error() string {
	if e.Entity != "payment" {
		return fmt.Sprintf("%s not found for booking %s", e.Entity, e.BookingID)
	}
	statuses := make([]string, 0, len(e.Statuses))
	for _, s := range e.Statuses {
		statuses = append(statuses, string(s))
	}
	return fmt.Sprintf("no eligible payment for booking %s (%d payments on file: [%s])",
		e.BookingID, e.PaymentCount, strings.Join(statuses, ", "))
}

func (e *RecordNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ReconciliationRequiredError means the provider moved money but the follow-up
// store write failed.
type ReconciliationRequiredError struct {
	BookingID  string
	PaymentID  uuid.UUID
	ProviderID string
	Outcome    HoldOutcome
	Err        error
}

func (e *ReconciliationRequiredError) Error() string {
	return fmt.Sprintf("reconciliation required for booking %s payment %s (%s %s): %v",
		e.BookingID, e.PaymentID, e.Outcome, e.ProviderID, e.Err)
}

func (e *ReconciliationRequiredError) Unwrap() error {
	return e.Err
}

func IsReconciliationRequired(err error) bool {
	var r *ReconciliationRequiredError
	return errors.As(err, &r)
}
