package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	ListingPagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_pages_fetched_total",
		Help: "Total number of listing pages rendered and extracted",
	}, []string{"listing"})

	ListingPageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_page_failures_total",
		Help: "Total number of listing pages that could not be rendered or extracted",
	}, []string{"listing", "stage"})

	RecordsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_collected_total",
		Help: "Total number of unique raw records collected",
	}, []string{"listing"})

	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_skipped_total",
		Help: "Total number of raw records skipped during processing",
	}, []string{"reason"})

	ProductsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products seen for the first time",
	})

	ObservationsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_observations_written_total",
		Help: "Total number of price observations inserted",
	})

	ObservationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_observations_suppressed_total",
		Help: "Total number of same-day duplicate observations suppressed",
	}, []string{"by"})

	PriceAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_alerts_total",
		Help: "Total number of price alerts recorded",
	}, []string{"kind"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_runs_total",
		Help: "Total number of tracker runs by outcome",
	}, []string{"listing", "status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_run_duration_seconds",
		Help:    "Wall-clock duration of tracker runs",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"listing"})

	PageRenderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_page_render_seconds",
		Help:    "Latency of rendering one listing page",
		Buckets: prometheus.DefBuckets,
	}, []string{"listing"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

// PushMetrics sends the default registry to a Pushgateway. Short-lived CLI runs
// use this instead of exposing /metrics.
func PushMetrics(gatewayURL, job string) error {
	return push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}
