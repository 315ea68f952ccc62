package service

import (
	"context"
	"testing"

	"price-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func some(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

var none = decimal.NullDecimal{}

func obs(current int64, original decimal.NullDecimal) *models.PriceObservation {
	return &models.PriceObservation{CurrentPrice: dec(current), OriginalPrice: original}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		prior    *models.PriceObservation
		current  decimal.Decimal
		original decimal.NullDecimal
		want     models.AlertKind
		wantOK   bool
	}{
		{"cold start", nil, dec(80), some(100), "", false},
		{"new sale", obs(100, none), dec(80), some(100), models.AlertNewSale, true},
		{"sale ended", obs(80, some(100)), dec(100), none, models.AlertSaleEnded, true},
		{"price drop", obs(100, none), dec(90), none, models.AlertPriceDrop, true},
		{"price increase", obs(90, none), dec(100), none, models.AlertPriceIncrease, true},
		{"unchanged", obs(100, none), dec(100), none, "", false},
		{"unchanged on sale", obs(80, some(100)), dec(80), some(100), "", false},
		{"deeper discount", obs(80, some(100)), dec(70), some(100), models.AlertPriceDrop, true},
		{"original not above current", obs(100, none), dec(90), some(90), models.AlertPriceDrop, true},
		{"sale ended at lower price", obs(80, some(100)), dec(60), some(60), models.AlertSaleEnded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Classify(tt.prior, tt.current, tt.original)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestChangeDetector_Classify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := &models.Product{Identity: "70010000065203", Name: "Kart", URL: "https://shop.example.com/70010000065203"}
	_, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)

	d := NewChangeDetector(s)

	alert, err := d.Classify(ctx, p.ID, dec(80), some(100))
	require.NoError(t, err)
	assert.Nil(t, alert)

	_, err = s.AppendObservation(ctx, p.ID, dec(100), none)
	require.NoError(t, err)

	alert, err = d.Classify(ctx, p.ID, dec(80), some(100))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, models.AlertNewSale, alert.Kind)
	assert.Equal(t, p.ID, alert.ProductID)
	assert.True(t, alert.OldPrice.Equal(dec(100)))
	assert.True(t, alert.NewPrice.Equal(dec(80)))
}
