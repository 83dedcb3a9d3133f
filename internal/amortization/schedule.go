// Package amortization computes payment schedules and payoff quotes.
// Everything here is pure: no clock, no storage, no side effects.
package amortization

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTerms = errors.New("invalid amortization terms")
	// ErrPortionMismatch is a construction-time invariant failure:
	// principal portion plus interest portion must equal the payment
	// amount to the cent. A schedule that trips this is never persisted.
	ErrPortionMismatch = errors.New("principal+interest does not equal amount")
)

var (
	hundred     = decimal.NewFromInt(100)
	twelve      = decimal.NewFromInt(12)
	daysPerYear = decimal.NewFromInt(365)
)

// Installment is one line of a payment schedule.
type Installment struct {
	PaymentNumber    int
	DueDate          time.Time
	Amount           decimal.Decimal
	PrincipalPortion decimal.Decimal
	InterestPortion  decimal.Decimal
}

// BuildSchedule produces the full level-payment schedule for a loan.
//
// Monthly rate r = APR/12/100. The level payment is
// A = P·r·(1+r)^n / ((1+r)^n − 1), or P/n when r is zero. Each period
// accrues interest on the remaining principal; the final period's
// principal portion absorbs accumulated rounding so that the principal
// portions sum to exactly P.
func BuildSchedule(principal, annualRatePercent decimal.Decimal, termMonths int, fundingDate time.Time) ([]Installment, error) {
	if !principal.IsPositive() || termMonths < 1 || annualRatePercent.IsNegative() {
		return nil, fmt.Errorf("%w: principal=%s rate=%s term=%d",
			ErrInvalidTerms, principal, annualRatePercent, termMonths)
	}

	n := int64(termMonths)
	r := annualRatePercent.Div(twelve).Div(hundred)

	var level decimal.Decimal
	if r.IsZero() {
		level = principal.Div(decimal.NewFromInt(n)).RoundUp(2)
	} else {
		pow := decimal.NewFromInt(1).Add(r).Pow(decimal.NewFromInt(n))
		level = principal.Mul(r).Mul(pow).Div(pow.Sub(decimal.NewFromInt(1))).Round(2)
	}

	out := make([]Installment, 0, termMonths)
	remaining := principal
	for k := 1; k <= termMonths; k++ {
		interest := remaining.Mul(r).Round(2)

		var principalPortion, amount decimal.Decimal
		if k == termMonths {
			// Final period zeroes out the balance exactly.
			principalPortion = remaining
			amount = remaining.Add(interest)
		} else {
			principalPortion = level.Sub(interest)
			amount = level
			// The rounded level payment must retire positive principal
			// every period without exhausting the balance before the last
			// one; a tiny principal over a long term trips this and would
			// otherwise push the final installment negative.
			if !principalPortion.IsPositive() || principalPortion.GreaterThanOrEqual(remaining) {
				return nil, fmt.Errorf("%w: level payment %s cannot amortize %s over %d months",
					ErrInvalidTerms, level, principal, termMonths)
			}
		}
		if !principalPortion.Add(interest).Equal(amount) {
			return nil, fmt.Errorf("%w: period %d", ErrPortionMismatch, k)
		}

		out = append(out, Installment{
			PaymentNumber:    k,
			DueDate:          fundingDate.AddDate(0, k, 0),
			Amount:           amount,
			PrincipalPortion: principalPortion,
			InterestPortion:  interest,
		})
		remaining = remaining.Sub(principalPortion)
	}
	return out, nil
}

// Quote is the amount required to fully satisfy a loan as of a date.
type Quote struct {
	RemainingPrincipal decimal.Decimal
	AccruedInterest    decimal.Decimal
	TotalPayoff        decimal.Decimal
}

// PayoffQuote accrues simple daily interest on the remaining principal
// since lastEventDate (the later of funding and the last completed
// payment) through asOf. Rounding is half-up to the cent. A zero
// remaining principal yields a zero quote; callers block payoff on it.
func PayoffQuote(remainingPrincipal, annualRatePercent decimal.Decimal, lastEventDate, asOf time.Time) (Quote, error) {
	if remainingPrincipal.IsNegative() || annualRatePercent.IsNegative() {
		return Quote{}, ErrInvalidTerms
	}
	if remainingPrincipal.IsZero() {
		return Quote{}, nil
	}

	days := DaysBetween(lastEventDate, asOf)
	if days < 0 {
		days = 0
	}
	accrued := remainingPrincipal.
		Mul(annualRatePercent).Div(hundred).
		Div(daysPerYear).
		Mul(decimal.NewFromInt(int64(days))).
		Round(2)

	return Quote{
		RemainingPrincipal: remainingPrincipal,
		AccruedInterest:    accrued,
		TotalPayoff:        remainingPrincipal.Add(accrued),
	}, nil
}

// DaysBetween counts whole calendar days from a to b, comparing dates
// in UTC so the accrual window is insensitive to time-of-day.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
