package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"price-tracker/config"
	"price-tracker/internal/models"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// extractScript collects the listing grid into a JSON array. It mirrors the
// selectors used by HTTPSession.
const extractScript = `() => {
	const items = document.querySelectorAll('.products-grid .product-item');
	const data = [];
	items.forEach((item) => {
		const link = item.querySelector('.product-item-link');
		const name = link && link.textContent ? link.textContent.trim() : '';
		if (!name) return;
		const attr = (sel, name) => {
			const el = item.querySelector(sel);
			return el ? (el.getAttribute(name) || '') : '';
		};
		const img = item.querySelector('.product-image-photo');
		data.push({
			name: name,
			url: link.href || '',
			finalPrice: attr('.price-final_price [data-price-amount]', 'data-price-amount'),
			oldPrice: attr('.old-price [data-price-amount]', 'data-price-amount'),
			img: img ? (img.src || '') : '',
			pid: attr('[data-price-box]', 'data-price-box'),
		});
	});
	return JSON.stringify(data);
}`

// BrowserSession renders listing pages in a Chromium instance driven by go-rod.
type BrowserSession struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	navTimeout time.Duration
	backoff    time.Duration
	logger     *zap.Logger
}

// NewBrowserSession launches the browser and opens the single page the session navigates.
func NewBrowserSession(ctx context.Context, cfg config.RenderConfig, logger *zap.Logger) (*BrowserSession, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	// Detached so Close still works after the run context expires.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s := &BrowserSession{
		launcher:   l,
		browser:    browser,
		navTimeout: cfg.NavTimeout,
		backoff:    cfg.RetryBackoff,
		logger:     logger,
	}
	if s.navTimeout <= 0 {
		s.navTimeout = defaultNavTimeout
	}
	if s.backoff <= 0 {
		s.backoff = defaultRetryBackoff
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  defaultViewportWidth,
		Height: defaultViewportHeight,
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	logger.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Render navigates the session page to pageURL.
func (s *BrowserSession) Render(ctx context.Context, pageURL string) error {
	return withRetry(ctx, s.logger, pageURL, s.backoff, func() error {
		return s.navigate(ctx, pageURL)
	})
}

func (s *BrowserSession) navigate(ctx context.Context, pageURL string) error {
	p := s.page.Context(ctx).Timeout(s.navTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(pageURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}

	// The grid appears only once the storefront's bot challenge has passed.
	grid := s.page.Context(ctx).Timeout(defaultSelectorWait)
	defer grid.CancelTimeout()
	if _, err := grid.Element(selectorGrid); err != nil {
		return fmt.Errorf("wait for %s: %w", selectorGrid, err)
	}
	return nil
}

// Extract evaluates the extraction script on the current page.
func (s *BrowserSession) Extract(ctx context.Context) ([]models.RawRecord, error) {
	res, err := s.page.Context(ctx).Eval(extractScript)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate extractor: %w", err)
	}

	var records []models.RawRecord
	if err := json.Unmarshal([]byte(res.Value.Str()), &records); err != nil {
		return nil, fmt.Errorf("failed to decode extracted records: %w", err)
	}
	return records, nil
}

// Close shuts the browser down and removes the launcher's profile directory.
func (s *BrowserSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return err
}
