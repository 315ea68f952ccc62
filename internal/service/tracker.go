package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"price-tracker/config"
	"price-tracker/internal/collector"
	"price-tracker/internal/models"
	"price-tracker/internal/render"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrTooFewRecords signals that a full run collected fewer records than the
// listing normally has, which usually means a site change or an access block.
var ErrTooFewRecords = errors.New("anomalously few records collected")

// RunStats summarizes one tracker run
type RunStats struct {
	RunID        string                   `json:"run_id"`
	Listing      string                   `json:"listing"`
	Collected    int                      `json:"collected"`
	Processed    int                      `json:"processed"`
	Skipped      int                      `json:"skipped"`
	NewProducts  int                      `json:"new_products"`
	Observations int                      `json:"observations"`
	Alerts       map[models.AlertKind]int `json:"alerts"`
	Duration     time.Duration            `json:"duration"`
}

// AlertCount returns the number of alerts of every kind.
func (s RunStats) AlertCount() int {
	n := 0
	for _, c := range s.Alerts {
		n += c
	}
	return n
}

// Tracker runs the collect, resolve, classify and record pipeline for a listing
type Tracker struct {
	collector *collector.Collector
	store     store.Store
	resolver  *ProductResolver
	detector  *ChangeDetector
	history   *HistoryRecorder
	logger    *zap.Logger
}

// NewTracker creates a new tracker. guard may be nil.
func NewTracker(c *collector.Collector, s store.Store, guard ObservationGuard) *Tracker {
	return &Tracker{
		collector: c,
		store:     s,
		resolver:  NewProductResolver(s),
		detector:  NewChangeDetector(s),
		history:   NewHistoryRecorder(s, guard),
		logger:    util.GetLogger(),
	}
}

// Run collects listing through session and processes every record in order.
// pageLimit 0 means a full run, which is subject to the listing's minimum
// record count. Writes already made are kept when Run fails part way.
func (t *Tracker) Run(ctx context.Context, session render.Session, listing config.Listing, pageLimit int) (stats RunStats, err error) {
	ctx, span := util.StartSpan(ctx, "Tracker.Run")
	defer span.End()

	stats = RunStats{
		RunID:   uuid.NewString(),
		Listing: listing.Name,
		Alerts:  make(map[models.AlertKind]int),
	}
	span.SetAttributes(attribute.String("run.id", stats.RunID), attribute.String("listing", listing.Name))

	start := time.Now()
	status := "success"
	defer func() {
		stats.Duration = time.Since(start)
		util.RunDuration.WithLabelValues(listing.Name).Observe(stats.Duration.Seconds())
		util.RunsTotal.WithLabelValues(listing.Name, status).Inc()
	}()

	logger := t.logger.With(zap.String("run_id", stats.RunID), zap.String("listing", listing.Name))
	logger.Info("Run started", zap.Int("page_limit", pageLimit))

	records, err := t.collector.Collect(ctx, session, listing, pageLimit)
	stats.Collected = len(records)
	if err != nil {
		status = "cancelled"
		return stats, fmt.Errorf("collect %s: %w", listing.Name, err)
	}

	if pageLimit == 0 && len(records) < listing.MinRecords {
		status = "anomaly"
		logger.Warn("Too few records collected",
			zap.Int("collected", len(records)),
			zap.Int("expected_min", listing.MinRecords))
		return stats, fmt.Errorf("%w: %d collected, expected at least %d", ErrTooFewRecords, len(records), listing.MinRecords)
	}

	for _, raw := range records {
		if err := ctx.Err(); err != nil {
			status = "cancelled"
			return stats, err
		}
		if err := t.processRecord(ctx, raw, &stats); err != nil {
			status = "failed"
			span.RecordError(err)
			logger.Error("Run aborted", zap.String("url", raw.URL), zap.Error(err))
			return stats, err
		}
	}

	logger.Info("Run finished",
		zap.Int("collected", stats.Collected),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("new_products", stats.NewProducts),
		zap.Int("alerts", stats.AlertCount()))
	return stats, nil
}

func (t *Tracker) processRecord(ctx context.Context, raw models.RawRecord, stats *RunStats) error {
	ctx, span := util.StartSpan(ctx, "Tracker.processRecord")
	defer span.End()

	current, ok := models.ParsePrice(raw.CurrentPriceRaw)
	if !ok {
		t.skip(stats, "price", raw)
		return nil
	}
	original := models.ParseOriginalPrice(raw.OriginalPriceRaw)

	productID, created, err := t.resolver.Upsert(ctx, raw)
	if errors.Is(err, ErrNoIdentity) {
		t.skip(stats, "identity", raw)
		return nil
	}
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	if created {
		stats.NewProducts++
	}

	alert, err := t.detector.Classify(ctx, productID, current, original)
	if err != nil {
		return err
	}

	inserted, err := t.history.Record(ctx, productID, current, original)
	if err != nil {
		return fmt.Errorf("record observation: %w", err)
	}
	if inserted {
		stats.Observations++
	}

	if alert != nil {
		if err := t.store.AppendAlerts(ctx, []models.PriceAlert{*alert}); err != nil {
			return fmt.Errorf("record alert: %w", err)
		}
		stats.Alerts[alert.Kind]++
		util.PriceAlertsTotal.WithLabelValues(string(alert.Kind)).Inc()
		t.logger.Info("Price alert",
			zap.Int64("product_id", productID),
			zap.String("kind", string(alert.Kind)),
			zap.String("old_price", alert.OldPrice.String()),
			zap.String("new_price", alert.NewPrice.String()))
	}

	stats.Processed++
	return nil
}

func (t *Tracker) skip(stats *RunStats, reason string, raw models.RawRecord) {
	stats.Skipped++
	util.RecordsSkipped.WithLabelValues(reason).Inc()
	t.logger.Debug("Record skipped",
		zap.String("reason", reason),
		zap.String("url", raw.URL),
		zap.String("price", raw.CurrentPriceRaw))
}
