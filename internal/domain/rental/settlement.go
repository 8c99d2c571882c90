package rental

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is the financial outcome of a return.
type Settlement struct {
	Rental        *Rental
	DaysLate      int
	LateFee       decimal.Decimal
	DepositRefund decimal.Decimal
}

// DaysLate returns the number of started days between due and returned, or
// zero when the item came back on time.
func DaysLate(due, returned time.Time) int {
	late := returned.Sub(due)
	if late <= 0 {
		return 0
	}
	return int(math.Ceil(late.Hours() / 24))
}

// LateFee charges each late day at the rate implied by the original rental
// price, i.e. line price divided by rental days.
func LateFee(linePrice decimal.Decimal, rentalDays, daysLate int) decimal.Decimal {
	if daysLate <= 0 || rentalDays <= 0 {
		return decimal.Zero
	}
	return linePrice.
		Mul(decimal.NewFromInt(int64(daysLate))).
		Div(decimal.NewFromInt(int64(rentalDays))).
		Round(2)
}

// DepositRefund returns the refundable part of the deposit. Damaged items
// forfeit half. The late fee is settled separately and does not reduce it.
func DepositRefund(deposit decimal.Decimal, c Condition) decimal.Decimal {
	if c == ConditionDamaged {
		return deposit.Div(decimal.NewFromInt(2)).Round(2)
	}
	return deposit
}

// Settle computes the return outcome and applies it to r.
func Settle(r *Rental, returned time.Time, c Condition) Settlement {
	days := DaysLate(r.EndDate, returned)

	fee := decimal.Zero
	if r.Item != nil {
		fee = LateFee(r.Item.Price, r.Item.RentalDays, days)
	}
	refund := DepositRefund(r.DepositAmount, c)

	r.ActualReturnDate = &returned
	r.LateFee = fee
	r.Status = StatusReturned
	if refund.Equal(r.DepositAmount) {
		r.DepositStatus = DepositRefunded
	} else {
		r.DepositStatus = DepositPartiallyRefunded
	}

	return Settlement{
		Rental:        r,
		DaysLate:      days,
		LateFee:       fee,
		DepositRefund: refund,
	}
}
