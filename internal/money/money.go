package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidMoney = errors.New("invalid money amount")

// Parse converts a user-entered decimal string (like "12.34") into an amount
// rounded to cents. Use ONLY at the API boundary; internal code passes
// decimal.Decimal around unchanged.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return d.Round(2), nil
}

// ParsePositive additionally rejects zero and negative amounts, which is what
// every posting magnitude requires.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrInvalidMoney, s)
	}
	return d, nil
}

// Format renders an amount with exactly two decimal places for display and
// provider payloads.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
