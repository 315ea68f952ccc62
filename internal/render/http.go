package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"price-tracker/config"
	"price-tracker/internal/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// HTTPSession fetches listing pages over plain HTTP and reads them with goquery.
// It suits storefronts that render the grid server-side.
type HTTPSession struct {
	client    *http.Client
	userAgent string
	backoff   time.Duration
	logger    *zap.Logger

	doc  *goquery.Document
	base *url.URL
}

// NewHTTPSession creates an HTTP session. A nil client gets one with the
// configured navigation timeout.
func NewHTTPSession(cfg config.RenderConfig, client *http.Client, logger *zap.Logger) *HTTPSession {
	if client == nil {
		timeout := cfg.NavTimeout
		if timeout <= 0 {
			timeout = defaultNavTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &HTTPSession{
		client:    client,
		userAgent: cfg.UserAgent,
		backoff:   backoff,
		logger:    logger,
	}
}

// Render fetches pageURL and keeps the parsed document for Extract.
func (s *HTTPSession) Render(ctx context.Context, pageURL string) error {
	s.doc, s.base = nil, nil
	return withRetry(ctx, s.logger, pageURL, s.backoff, func() error {
		return s.fetch(ctx, pageURL)
	})
}

func (s *HTTPSession) fetch(ctx context.Context, pageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	if doc.Find(selectorGrid).Length() == 0 {
		return fmt.Errorf("listing grid %s not found", selectorGrid)
	}

	s.doc = doc
	s.base = resp.Request.URL
	return nil
}

// Extract reads the product records from the last rendered page.
func (s *HTTPSession) Extract(_ context.Context) ([]models.RawRecord, error) {
	if s.doc == nil {
		return nil, errors.New("no page rendered")
	}

	var records []models.RawRecord
	s.doc.Find(selectorItem).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(selectorLink).First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}

		records = append(records, models.RawRecord{
			Name:             name,
			URL:              s.resolve(link.AttrOr("href", "")),
			CurrentPriceRaw:  item.Find(selectorFinalPrice).First().AttrOr(attrPriceAmount, ""),
			OriginalPriceRaw: item.Find(selectorOldPrice).First().AttrOr(attrPriceAmount, ""),
			ImageURL:         s.resolve(item.Find(selectorImage).First().AttrOr("src", "")),
			Code:             item.Find(selectorPriceBox).First().AttrOr(attrPriceBox, ""),
		})
	})
	return records, nil
}

// resolve makes ref absolute against the page URL, like a browser's href property.
func (s *HTTPSession) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || s.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.base.ResolveReference(u).String()
}

// Close releases idle connections.
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
