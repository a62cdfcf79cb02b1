// Package money centralizes decimal arithmetic helpers so price, quantity,
// and P&L math is consistent everywhere it crosses a package boundary.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// D is a convenience alias so call sites read "money.D" instead of the full
// shopspring import path.
type D = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// FromFloat builds a decimal from a float64 webhook field. Webhooks and
// broker JSON APIs deliver numeric fields as float64 or numeric strings;
// this is the single place that crosses from float into decimal.
func FromFloat(f float64) D {
	return decimal.NewFromFloat(f)
}

// FromString parses a decimal from a string field, tolerating an empty
// string as zero (common for optional JSON fields).
func FromString(s string) (D, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ParseJSONNumber unmarshals a json.Number-typed field (set via
// json.Decoder.UseNumber) into a decimal without the float64 round-trip.
func ParseJSONNumber(n json.Number) (D, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", n, err)
	}
	return d, nil
}

// Abs returns the absolute value of d.
func Abs(d D) D { return d.Abs() }

// Max returns the larger of a and b.
func Max(a, b D) D {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b D) D {
	if a.LessThan(b) {
		return a
	}
	return b
}
