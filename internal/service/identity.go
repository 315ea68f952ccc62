package service

import (
	"regexp"
	"strings"
)

var (
	numericSuffix = regexp.MustCompile(`/(\d{10,})$`)
	digitRun      = regexp.MustCompile(`\d+`)
)

// DeriveIdentity returns the stable product key for a listing URL: its
// trailing run of at least ten digits, or else its last non-empty path segment.
func DeriveIdentity(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if m := numericSuffix.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// DeriveCatalogCode extracts the numeric part of the storefront's internal
// product code, e.g. "product-id-32240" becomes "32240".
func DeriveCatalogCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := digitRun.FindString(raw); m != "" {
		return m
	}
	return raw
}
