package store

import (
	"context"
	"testing"
	"time"

	"price-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// setupTestStore creates a migrated in-memory SQLite store.
func setupTestStore(t *testing.T) (*GormStore, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	s, err := OpenSQLite(":memory:", false, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s, clock
}

func seedProduct(t *testing.T, s *GormStore, identity string) *models.Product {
	t.Helper()
	p := &models.Product{
		Identity: identity,
		Name:     "Product " + identity,
		URL:      "https://shop.example.com/" + identity,
	}
	_, err := s.UpsertProduct(context.Background(), p)
	require.NoError(t, err)
	return p
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func orig(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

func TestGormUpsertProduct_Idempotent(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	p := &models.Product{
		Identity: "70010000065203",
		Name:     "Super Kart",
		URL:      "https://shop.example.com/70010000065203",
		ImageURL: "https://cdn.example.com/a.jpg",
		Code:     "32240",
	}
	created, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotZero(t, p.ID)
	firstSeen := p.FirstSeenAt

	clock.Advance(2 * time.Hour)
	again := &models.Product{
		Identity: "70010000065203",
		Name:     "Super Kart Deluxe",
		URL:      "https://mirror.example.com/70010000065203",
		ImageURL: "https://cdn.example.com/b.jpg",
	}
	created, err = s.UpsertProduct(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)

	stored, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Super Kart Deluxe", stored.Name)
	assert.Equal(t, "https://cdn.example.com/b.jpg", stored.ImageURL)
	assert.Equal(t, "https://shop.example.com/70010000065203", stored.URL)
	assert.Equal(t, "32240", stored.Code)
	assert.True(t, firstSeen.Equal(stored.FirstSeenAt))
	assert.True(t, stored.UpdatedAt.After(stored.FirstSeenAt))

	products, err := s.ListProducts(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestGormAppendObservation_SameDayDedup(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, "123")

	inserted, err := s.AppendObservation(ctx, p.ID, price(80), orig(100))
	require.NoError(t, err)
	assert.True(t, inserted)

	clock.Advance(3 * time.Hour)
	inserted, err = s.AppendObservation(ctx, p.ID, price(80), orig(100))
	require.NoError(t, err)
	assert.False(t, inserted)

	history, err := s.ListObservations(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DiscountPercent)
	assert.Equal(t, 20, *history[0].DiscountPercent)
}

func TestGormAppendObservation_DifferentPairSameDay(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, "123")

	inserted, err := s.AppendObservation(ctx, p.ID, price(80), orig(100))
	require.NoError(t, err)
	assert.True(t, inserted)

	clock.Advance(time.Hour)
	inserted, err = s.AppendObservation(ctx, p.ID, price(75), orig(100))
	require.NoError(t, err)
	assert.True(t, inserted)

	clock.Advance(time.Hour)
	inserted, err = s.AppendObservation(ctx, p.ID, price(75), decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, inserted)

	history, err := s.ListObservations(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Nil(t, history[0].DiscountPercent)
	assert.False(t, history[0].OriginalPrice.Valid)
}

func TestGormAppendObservation_NextDay(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, "123")

	_, err := s.AppendObservation(ctx, p.ID, price(80), orig(100))
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	inserted, err := s.AppendObservation(ctx, p.ID, price(80), orig(100))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestGormAppendObservation_UnknownProduct(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.AppendObservation(context.Background(), 999, price(10), decimal.NullDecimal{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormLatestObservation(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, "123")

	latest, err := s.LatestObservation(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = s.AppendObservation(ctx, p.ID, price(100), decimal.NullDecimal{})
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = s.AppendObservation(ctx, p.ID, price(90), decimal.NullDecimal{})
	require.NoError(t, err)

	latest, err = s.LatestObservation(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.CurrentPrice.Equal(price(90)))
}

func TestGormAlerts(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	a := seedProduct(t, s, "111")
	b := seedProduct(t, s, "222")

	require.NoError(t, s.AppendAlerts(ctx, nil))
	alerts, err := s.ListAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)

	require.NoError(t, s.AppendAlerts(ctx, []models.PriceAlert{
		{ProductID: a.ID, Kind: models.AlertNewSale, OldPrice: price(100), NewPrice: price(80)},
	}))
	clock.Advance(time.Minute)
	require.NoError(t, s.AppendAlerts(ctx, []models.PriceAlert{
		{ProductID: b.ID, Kind: models.AlertPriceIncrease, OldPrice: price(50), NewPrice: price(60)},
	}))

	alerts, err = s.ListAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertPriceIncrease, alerts[0].Kind)

	alerts, err = s.ListAlerts(ctx, AlertFilter{Kind: models.AlertNewSale})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, a.ID, alerts[0].ProductID)
	assert.True(t, alerts[0].NewPrice.Equal(price(80)))

	alerts, err = s.ListAlerts(ctx, AlertFilter{ProductID: b.ID})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestGormGetProduct_NotFound(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockProduct_ForUpdateOnMySQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "tracker:tracker@tcp(127.0.0.1:3306)/tracker?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	query := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var p models.Product
		return lockProduct(tx, 7, &p)
	})
	assert.Contains(t, query, "FOR UPDATE")
	assert.Contains(t, query, "id = 7")

	// SQLite has no row locks; the clause is dropped.
	s, _ := setupTestStore(t)
	query = s.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var p models.Product
		return lockProduct(tx, 7, &p)
	})
	assert.NotContains(t, query, "FOR UPDATE")
}
