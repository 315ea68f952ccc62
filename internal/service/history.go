package service

import (
	"context"

	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ObservationGuard is a fast path that remembers which price pairs were
// already recorded today. Claim reports false when the pair was seen.
type ObservationGuard interface {
	Claim(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (bool, error)
	Release(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) error
}

// HistoryRecorder appends price observations, consulting an optional guard first
type HistoryRecorder struct {
	store  store.Store
	guard  ObservationGuard
	logger *zap.Logger
}

// NewHistoryRecorder creates a new history recorder. guard may be nil.
func NewHistoryRecorder(s store.Store, guard ObservationGuard) *HistoryRecorder {
	return &HistoryRecorder{
		store:  s,
		guard:  guard,
		logger: util.GetLogger(),
	}
}

// Record stores the reading unless an identical one was already recorded
// today. It reports whether a row was inserted.
func (h *HistoryRecorder) Record(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (bool, error) {
	ctx, span := util.StartSpan(ctx, "HistoryRecorder.Record")
	defer span.End()

	claimed := false
	if h.guard != nil {
		ok, err := h.guard.Claim(ctx, productID, current, original)
		if err != nil {
			h.logger.Warn("Observation guard unavailable, falling back to store",
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if !ok {
			util.ObservationsSuppressed.WithLabelValues("guard").Inc()
			return false, nil
		} else {
			claimed = true
		}
	}

	inserted, err := h.store.AppendObservation(ctx, productID, current, original)
	if err != nil {
		span.RecordError(err)
		if claimed {
			if rerr := h.guard.Release(ctx, productID, current, original); rerr != nil {
				h.logger.Warn("Failed to release observation claim",
					zap.Int64("product_id", productID),
					zap.Error(rerr))
			}
		}
		return false, err
	}

	if inserted {
		util.ObservationsWritten.Inc()
	} else {
		util.ObservationsSuppressed.WithLabelValues("store").Inc()
	}
	return inserted, nil
}
