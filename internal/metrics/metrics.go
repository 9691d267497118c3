package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	// Dashboard query metrics
	DashboardRequests *prometheus.CounterVec
	DashboardLatency  *prometheus.HistogramVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec

	// Ingest metrics
	ItemsIngested  prometheus.Counter
	IngestFailures prometheus.Counter
	StoredItems    prometheus.Gauge

	// Enrichment metrics
	GeoLookupLatency prometheus.Histogram
	GeoLookupErrors  prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DashboardRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_requests_total",
				Help:      "Dashboard queries served, by page and cache outcome",
			},
			[]string{"page", "source"},
		),
		DashboardLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dashboard_latency_seconds",
				Help:      "Dashboard query latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"page"},
		),
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Dashboard response cache hits",
			},
			[]string{"page"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Dashboard response cache misses",
			},
			[]string{"page"},
		),
		ItemsIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_ingested_total",
				Help:      "Work items accepted by the ingest endpoint",
			},
		),
		IngestFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_failures_total",
				Help:      "Work items rejected by validation or storage",
			},
		),
		StoredItems: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stored_items",
				Help:      "Work items currently in the store",
			},
		),
		GeoLookupLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1},
			},
		),
		GeoLookupErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geo_lookup_errors_total",
				Help:      "GeoIP lookups that failed",
			},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}
}

// RecordDashboard records one served dashboard query.
func (m *Metrics) RecordDashboard(page, source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DashboardRequests.WithLabelValues(page, source).Inc()
	m.DashboardLatency.WithLabelValues(page).Observe(duration.Seconds())
}

// RecordCacheHit records a dashboard cache hit.
func (m *Metrics) RecordCacheHit(page string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(page).Inc()
}

// RecordCacheMiss records a dashboard cache miss.
func (m *Metrics) RecordCacheMiss(page string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(page).Inc()
}

// RecordIngest records accepted and rejected items from one ingest call.
func (m *Metrics) RecordIngest(accepted, rejected int) {
	if m == nil {
		return
	}
	m.ItemsIngested.Add(float64(accepted))
	m.IngestFailures.Add(float64(rejected))
}

// SetStoredItems updates the stored items gauge.
func (m *Metrics) SetStoredItems(n int64) {
	if m == nil {
		return
	}
	m.StoredItems.Set(float64(n))
}

// RecordGeoLookup records one GeoIP lookup.
func (m *Metrics) RecordGeoLookup(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.GeoLookupLatency.Observe(duration.Seconds())
	if err != nil {
		m.GeoLookupErrors.Inc()
	}
}

// RecordRateLimitHit records a rate-limited request.
func (m *Metrics) RecordRateLimitHit(path string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(path).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
