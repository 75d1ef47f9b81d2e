package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are kept to the cent. Example: "25,50" is stored as 25.50.
const AmountPlaces = 2

var ErrInvalidAmount = errors.New("invalid amount")

// NewAmount parses a dot-decimal string such as "180.00".
func NewAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.Round(AmountPlaces), nil
}

// MustAmount is NewAmount for constants and tests.
func MustAmount(s string) decimal.Decimal {
	d, err := NewAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ValidatePayment checks that a payment amount is strictly positive
func ValidatePayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: payment must be greater than zero, got %s", ErrInvalidAmount, amount.StringFixed(AmountPlaces))
	}
	return nil
}

// Floor0 clamps negative balances to zero.
func Floor0(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
