package collector

import (
	"context"
	"math/rand"
	"time"

	"price-tracker/config"
	"price-tracker/internal/models"
	"price-tracker/internal/render"
	"price-tracker/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Collector walks a paginated listing one page at a time
type Collector struct {
	minDelay time.Duration
	maxDelay time.Duration
	rng      *rand.Rand
	sleep    SleepFunc
	logger   *zap.Logger
}

// Option configures a Collector
type Option func(*Collector)

// WithSleep replaces the courtesy delay implementation.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Collector) { c.sleep = sleep }
}

// WithRand replaces the delay jitter source.
func WithRand(rng *rand.Rand) Option {
	return func(c *Collector) { c.rng = rng }
}

// New creates a collector that waits a random duration in [minDelay, maxDelay]
// between successful page fetches.
func New(minDelay, maxDelay time.Duration, logger *zap.Logger, opts ...Option) *Collector {
	c := &Collector{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect renders listing pages 1..N and returns the unique records in
// first-seen order. It stops on an empty page, on a page shorter than the
// listing's page size, after pageLimit pages (0 means no limit), or when a page
// cannot be rendered or extracted. Only cancellation of ctx is returned as an
// error, together with the records collected so far.
func (c *Collector) Collect(ctx context.Context, session render.Session, listing config.Listing, pageLimit int) ([]models.RawRecord, error) {
	ctx, span := util.StartSpan(ctx, "Collector.Collect")
	defer span.End()
	span.SetAttributes(attribute.String("listing", listing.Name))

	var records []models.RawRecord
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		if pageLimit > 0 && page > pageLimit {
			c.logger.Info("Page limit reached", zap.String("listing", listing.Name), zap.Int("limit", pageLimit))
			break
		}
		if err := ctx.Err(); err != nil {
			return records, err
		}

		if page > 1 {
			if err := c.sleep(ctx, c.delay()); err != nil {
				return records, err
			}
		}

		items, ok := c.fetchPage(ctx, session, listing, page)
		if !ok {
			break
		}

		if len(items) == 0 {
			c.logger.Info("Empty page, end of listing", zap.String("listing", listing.Name), zap.Int("page", page))
			break
		}

		added := 0
		for _, item := range items {
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			records = append(records, item)
			added++
		}
		util.RecordsCollected.WithLabelValues(listing.Name).Add(float64(added))

		c.logger.Info("Page collected",
			zap.String("listing", listing.Name),
			zap.Int("page", page),
			zap.Int("items", len(items)),
			zap.Int("new", added))

		if listing.PageSize > 0 && len(items) < listing.PageSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	c.logger.Info("Collection finished", zap.String("listing", listing.Name), zap.Int("records", len(records)))
	return records, nil
}

// fetchPage renders and extracts one page. The render call is detached from
// ctx cancellation so a page in flight finishes or hits its own timeout.
func (c *Collector) fetchPage(ctx context.Context, session render.Session, listing config.Listing, page int) ([]models.RawRecord, bool) {
	ctx, span := util.StartSpan(ctx, "Collector.fetchPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	pageURL := listing.PageURL(page)
	pageCtx := context.WithoutCancel(ctx)

	start := time.Now()
	err := session.Render(pageCtx, pageURL)
	util.PageRenderLatency.WithLabelValues(listing.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		util.ListingPageFailures.WithLabelValues(listing.Name, "render").Inc()
		span.RecordError(err)
		c.logger.Warn("Page unavailable, stopping pagination",
			zap.String("listing", listing.Name),
			zap.Int("page", page),
			zap.Error(err))
		return nil, false
	}

	items, err := session.Extract(pageCtx)
	if err != nil {
		util.ListingPageFailures.WithLabelValues(listing.Name, "extract").Inc()
		span.RecordError(err)
		c.logger.Warn("Page extraction failed, stopping pagination",
			zap.String("listing", listing.Name),
			zap.Int("page", page),
			zap.Error(err))
		return nil, false
	}

	util.ListingPagesFetched.WithLabelValues(listing.Name).Inc()
	return items, true
}

func (c *Collector) delay() time.Duration {
	if c.maxDelay <= c.minDelay {
		return c.minDelay
	}
	return c.minDelay + time.Duration(c.rng.Int63n(int64(c.maxDelay-c.minDelay)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
