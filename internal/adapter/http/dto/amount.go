package dto

import (
	"wallet-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// MinorUnits parses a decimal amount string ("50.00") into integer minor
// units. Amounts must be strictly positive and carry at most two fractional
// digits; everything money-related past this boundary is int64 cents.
func MinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, apperror.Validation("amount must be a decimal number")
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, apperror.Validation("amount must have at most two decimal places")
	}
	minor := shifted.IntPart()
	if minor <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}
	return minor, nil
}

// FormatMinorUnits renders minor units back to a decimal string.
func FormatMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
