// Package policy holds the rider cancellation refund tiers.
package policy

import (
	"fmt"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
)

type tier struct {
	from    time.Duration
	percent int
}

// Evaluated top-down; the first tier whose lower bound is reached wins.
var tiers = []tier{
	{from: 12 * time.Hour, percent: 100},
	{from: 6 * time.Hour, percent: 75},
	{from: 2 * time.Hour, percent: 50},
	{from: 0, percent: 25},
}

// RefundSplit maps the time left before departure to the refund and fee owed
// on a confirmed booking.
func RefundSplit(total domain.Money, untilDeparture time.Duration) domain.CancellationOutcome {
	percent := 0
	for _, t := range tiers {
		if untilDeparture >= t.from {
			percent = t.percent
			break
		}
	}

	refund := percentOf(total, percent)
	fee := domain.Money{Amount: total.Amount - refund.Amount, Currency: total.Currency}

	return domain.CancellationOutcome{
		Refund:  refund,
		Fee:     fee,
		Percent: percent,
		Reason:  reason(percent, untilDeparture),
	}
}

// RefundSplitHours is RefundSplit with the distance expressed in hours.
func RefundSplitHours(total domain.Money, hoursUntilDeparture float64) domain.CancellationOutcome {
	return RefundSplit(total, time.Duration(hoursUntilDeparture*float64(time.Hour)))
}

// percentOf rounds half away from zero to the nearest minor unit.
func percentOf(total domain.Money, percent int) domain.Money {
	if percent <= 0 || total.Amount <= 0 {
		return domain.Money{Amount: 0, Currency: total.Currency}
	}
	amount := (total.Amount*int64(percent) + 50) / 100
	if amount > total.Amount {
		amount = total.Amount
	}
	return domain.Money{Amount: amount, Currency: total.Currency}
}

func reason(percent int, untilDeparture time.Duration) string {
	switch {
	case untilDeparture < 0:
		return "cancelled after departure: no refund"
	case percent == 100:
		return "cancelled 12 or more hours before departure: full refund"
	default:
		return fmt.Sprintf("cancelled %.1f hours before departure: %d%% refund", untilDeparture.Hours(), percent)
	}
}
