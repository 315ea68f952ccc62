package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationKey(t *testing.T) {
	day := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)

	withSale := observationKey(7, day, decimal.NewFromInt(80), decimal.NewNullDecimal(decimal.NewFromInt(100)))
	assert.Equal(t, "observation:7:2026-03-10:80:100", withSale)

	noSale := observationKey(7, day, decimal.RequireFromString("129.50"), decimal.NullDecimal{})
	assert.Equal(t, "observation:7:2026-03-10:129.5:-", noSale)

	nextDay := observationKey(7, day.Add(time.Minute), decimal.NewFromInt(80), decimal.NewNullDecimal(decimal.NewFromInt(100)))
	assert.NotEqual(t, withSale, nextDay)
}

func TestClaimAndRelease(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	c, err := NewClient("localhost:6379", "", 15, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	cur := decimal.NewFromInt(80)
	orig := decimal.NewNullDecimal(decimal.NewFromInt(100))

	require.NoError(t, c.Release(ctx, 1, cur, orig))

	ok, err := c.Claim(ctx, 1, cur, orig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, 1, cur, orig)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, 1, cur, orig))
	ok, err = c.Claim(ctx, 1, cur, orig)
	require.NoError(t, err)
	assert.True(t, ok)
}
