package shared

import (
	"github.com/shopspring/decimal"
)

// Monetary amounts cross the API boundary as decimals and are stored as
// int64 minor units (two decimal places) so balance and spend updates can be
// applied as atomic increments.

// ToMinorUnits converts a decimal amount to minor units. The amount must
// carry at most two decimal places; ValidateAmount checks that first.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// FromMinorUnits converts stored minor units back to a decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ValidateAmount rejects amounts with sub-cent precision.
func ValidateAmount(field string, d decimal.Decimal) error {
	if !d.Shift(2).IsInteger() {
		return NewValidationError(field, "amount %s has more than two decimal places", d.String())
	}
	return nil
}

// ValidateNonNegativeAmount additionally rejects negative amounts.
func ValidateNonNegativeAmount(field string, d decimal.Decimal) error {
	if err := ValidateAmount(field, d); err != nil {
		return err
	}
	if d.IsNegative() {
		return NewValidationError(field, "amount must not be negative")
	}
	return nil
}
