package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "pending"
	BookingStatusConfirmed        BookingStatus = "confirmed"
	BookingStatusCancelled        BookingStatus = "cancelled"
	BookingStatusRejected         BookingStatus = "rejected"
	BookingStatusTimeoutCancelled BookingStatus = "timeout_cancelled"
	BookingStatusCompleted        BookingStatus = "completed"
)

// IsClosed reports whether the marketplace already settled the booking outcome.
func (s BookingStatus) IsClosed() bool {
	switch s {
	case BookingStatusCancelled, BookingStatusRejected, BookingStatusTimeoutCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Booking is the marketplace's ride request. The hold core only touches the
// status, payment status and deadline columns.
type Booking struct {
	ID                  string
	Status              BookingStatus
	PaymentStatus       PaymentStatus
	DepartureAt         time.Time
	TotalAmount         Money
	ResponseDeadline    *time.Time
	PaymentAuthorizedAt *time.Time
	PaymentExpiresAt    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
