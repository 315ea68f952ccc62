package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"398", "398", true},
		{" 129.5 ", "129.5", true},
		{"129.555", "129.56", true},
		{"129.554", "129.55", true},
		{"0", "0", true},
		{"", "", false},
		{"abc", "", false},
		{"1,234", "", false},
		{"-1", "", false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		if tt.ok {
			assert.True(t, dec(tt.want).Equal(got), "raw=%q got=%s", tt.raw, got)
		}
	}
}

func TestParseOriginalPrice(t *testing.T) {
	assert.False(t, ParseOriginalPrice("").Valid)
	assert.False(t, ParseOriginalPrice("n/a").Valid)

	got := ParseOriginalPrice("100")
	require.True(t, got.Valid)
	assert.True(t, dec("100").Equal(got.Decimal))
}

func TestDiscountPercent(t *testing.T) {
	pct := DiscountPercent(dec("80"), nullDec("100"))
	require.NotNil(t, pct)
	assert.Equal(t, 20, *pct)

	// Half-to-even: 12.5 rounds down, 37.5 rounds up.
	pct = DiscountPercent(dec("87.5"), nullDec("100"))
	require.NotNil(t, pct)
	assert.Equal(t, 12, *pct)

	pct = DiscountPercent(dec("62.5"), nullDec("100"))
	require.NotNil(t, pct)
	assert.Equal(t, 38, *pct)

	// Exact arithmetic: 57.5 is a true half and rounds to 58.
	pct = DiscountPercent(dec("17"), nullDec("40"))
	require.NotNil(t, pct)
	assert.Equal(t, 58, *pct)

	pct = DiscountPercent(dec("268"), nullDec("398"))
	require.NotNil(t, pct)
	assert.Equal(t, 33, *pct)

	assert.Nil(t, DiscountPercent(dec("80"), decimal.NullDecimal{}))
	assert.Nil(t, DiscountPercent(dec("100"), nullDec("100")))
	assert.Nil(t, DiscountPercent(dec("120"), nullDec("100")))
	assert.Nil(t, DiscountPercent(dec("0"), nullDec("0")))
}

func TestIsDiscounted(t *testing.T) {
	assert.True(t, IsDiscounted(dec("80"), nullDec("100")))
	assert.False(t, IsDiscounted(dec("100"), nullDec("100")))
	assert.False(t, IsDiscounted(dec("100"), decimal.NullDecimal{}))
}

func TestSamePricePair(t *testing.T) {
	assert.True(t, SamePricePair(dec("80"), nullDec("100"), dec("80.00"), nullDec("100.0")))
	assert.True(t, SamePricePair(dec("80"), decimal.NullDecimal{}, dec("80"), decimal.NullDecimal{}))
	assert.False(t, SamePricePair(dec("80"), nullDec("100"), dec("80"), decimal.NullDecimal{}))
	assert.False(t, SamePricePair(dec("80"), nullDec("100"), dec("79"), nullDec("100")))
}

func TestAlertKind(t *testing.T) {
	for _, k := range AlertKinds {
		assert.True(t, k.Valid())
		parsed, ok := ParseAlertKind(string(k))
		assert.True(t, ok)
		assert.Equal(t, k, parsed)
	}

	_, ok := ParseAlertKind("restock")
	assert.False(t, ok)
}
