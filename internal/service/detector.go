package service

import (
	"context"
	"fmt"

	"price-tracker/internal/models"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Classify compares a new reading against the prior observation. It reports
// false on cold start (no prior) and when nothing moved.
func Classify(prior *models.PriceObservation, current decimal.Decimal, original decimal.NullDecimal) (models.AlertKind, bool) {
	if prior == nil {
		return "", false
	}

	hadDiscount := prior.HasDiscount()
	hasDiscount := models.IsDiscounted(current, original)

	switch {
	case !hadDiscount && hasDiscount:
		return models.AlertNewSale, true
	case hadDiscount && !hasDiscount:
		return models.AlertSaleEnded, true
	case current.LessThan(prior.CurrentPrice):
		return models.AlertPriceDrop, true
	case current.GreaterThan(prior.CurrentPrice):
		return models.AlertPriceIncrease, true
	}
	return "", false
}

// ChangeDetector classifies new readings against the latest stored observation
type ChangeDetector struct {
	store store.Store
}

// NewChangeDetector creates a new change detector
func NewChangeDetector(s store.Store) *ChangeDetector {
	return &ChangeDetector{store: s}
}

// Classify returns at most one alert for the transition from the product's
// latest observation to (current, original). The alert is not persisted.
func (d *ChangeDetector) Classify(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (*models.PriceAlert, error) {
	ctx, span := util.StartSpan(ctx, "ChangeDetector.Classify")
	defer span.End()

	prior, err := d.store.LatestObservation(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest observation: %w", err)
	}

	kind, ok := Classify(prior, current, original)
	if !ok {
		return nil, nil
	}
	span.SetAttributes(attribute.String("alert.kind", string(kind)))

	return &models.PriceAlert{
		ProductID: productID,
		Kind:      kind,
		OldPrice:  prior.CurrentPrice,
		NewPrice:  current,
	}, nil
}
