package safe

import (
	"github.com/shopspring/decimal"
)

// DefaultPlaces is the precision used when no coin-specific override exists.
const DefaultPlaces int32 = 6

// Mul multiplies a and b and rounds the product to places.
// Rounding after every step keeps chained conversions from drifting.
func Mul(a, b decimal.Decimal, places int32) decimal.Decimal {
	return a.Mul(b).Round(places)
}

// Div divides a by b and rounds the quotient to places. Panics on division by zero.
func Div(a, b decimal.Decimal, places int32) decimal.Decimal {
	if b.IsZero() {
		panic("CORE_SAFE_DIV_BY_ZERO")
	}
	return a.DivRound(b, places)
}

// Round rounds a to places (half away from zero).
func Round(a decimal.Decimal, places int32) decimal.Decimal {
	return a.Round(places)
}

// WithinEpsilon reports whether |a-b| <= eps.
func WithinEpsilon(a, b, eps decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(eps)
}

// ParsePositive parses s as a strictly positive decimal.
func ParsePositive(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
