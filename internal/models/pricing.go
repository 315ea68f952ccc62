package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fraction digits prices are stored with.
const PriceScale = 2

var hundred = decimal.NewFromInt(100)

// ParsePrice parses a raw price amount such as "398" or "129.5", rounded half
// away from zero to PriceScale places. Missing, non-numeric and negative amounts
// are reported as not ok.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d.Round(PriceScale), true
}

// ParseOriginalPrice parses an optional original price; anything unparseable is absent.
func ParseOriginalPrice(raw string) decimal.NullDecimal {
	d, ok := ParsePrice(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// IsDiscounted reports whether original is present and strictly above current.
func IsDiscounted(current decimal.Decimal, original decimal.NullDecimal) bool {
	return original.Valid && original.Decimal.GreaterThan(current)
}

// DiscountPercent returns round((1 - current/original) * 100) with half-to-even rounding,
// or nil when original is absent, zero, or not above current.
func DiscountPercent(current decimal.Decimal, original decimal.NullDecimal) *int {
	if !original.Valid || !original.Decimal.IsPositive() || !current.LessThan(original.Decimal) {
		return nil
	}
	pct := decimal.NewFromInt(1).
		Sub(current.Div(original.Decimal)).
		Mul(hundred).
		RoundBank(0)
	v := int(pct.IntPart())
	return &v
}

// SamePricePair reports whether two (current, original) readings are identical.
func SamePricePair(aCur decimal.Decimal, aOrig decimal.NullDecimal, bCur decimal.Decimal, bOrig decimal.NullDecimal) bool {
	if !aCur.Equal(bCur) {
		return false
	}
	if aOrig.Valid != bOrig.Valid {
		return false
	}
	return !aOrig.Valid || aOrig.Decimal.Equal(bOrig.Decimal)
}
