// Package render drives a listing page renderer and extracts raw product records
// from the rendered DOM.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"price-tracker/config"
	"price-tracker/internal/models"

	"go.uber.org/zap"
)

// ErrPageUnavailable is returned when a listing page could not be rendered after its retry.
var ErrPageUnavailable = errors.New("listing page unavailable")

// DOM selectors of the storefront's listing grid.
const (
	selectorGrid          = ".products-grid"
	selectorItem          = ".products-grid .product-item"
	selectorLink          = ".product-item-link"
	selectorFinalPrice    = ".price-final_price [data-price-amount]"
	selectorOldPrice      = ".old-price [data-price-amount]"
	selectorImage         = ".product-image-photo"
	selectorPriceBox      = "[data-price-box]"
	attrPriceAmount       = "data-price-amount"
	attrPriceBox          = "data-price-box"
	defaultRetryBackoff   = 3 * time.Second
	defaultNavTimeout     = 60 * time.Second
	defaultSelectorWait   = 30 * time.Second
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
)

// Session is one browsing session over the storefront. It is not safe for
// concurrent use: navigation and extraction share the session's current page.
type Session interface {
	// Render navigates to pageURL and waits for the listing grid. A failed
	// attempt is retried once after a fixed backoff.
	Render(ctx context.Context, pageURL string) error
	// Extract returns the product records of the currently rendered page.
	Extract(ctx context.Context) ([]models.RawRecord, error)
	Close() error
}

// Open starts a session for the configured render driver. A failure here is
// fatal for the run: no page has been fetched yet.
func Open(ctx context.Context, cfg config.RenderConfig, logger *zap.Logger) (Session, error) {
	switch cfg.Driver {
	case "rod":
		s, err := NewBrowserSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "http":
		return NewHTTPSession(cfg, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown render driver %q", cfg.Driver)
	}
}

// withRetry runs attempt, retrying once after backoff when it fails.
func withRetry(ctx context.Context, logger *zap.Logger, pageURL string, backoff time.Duration, attempt func() error) error {
	err := attempt()
	if err == nil {
		return nil
	}

	logger.Warn("Page load failed, retrying",
		zap.String("url", pageURL),
		zap.Duration("backoff", backoff),
		zap.Error(err))

	timer := time.NewTimer(backoff)
	select {
	case <-ctx.Done():
		timer.Stop()
		return fmt.Errorf("%w: %s: %v", ErrPageUnavailable, pageURL, ctx.Err())
	case <-timer.C:
	}

	if err := attempt(); err != nil {
		logger.Warn("Page load failed, giving up",
			zap.String("url", pageURL),
			zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrPageUnavailable, pageURL, err)
	}
	return nil
}
