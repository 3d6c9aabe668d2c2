// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlOutcomesTotal         *prometheus.CounterVec
	crawlerBytesTotal          *prometheus.CounterVec
	fetchFallbacksTotal        prometheus.Counter
	artifactsStoredTotal       *prometheus.CounterVec
	cleanupDeletedTotal        *prometheus.CounterVec
	cleanupBytesFreedTotal     prometheus.Counter
	ledgerPurgedTotal          prometheus.Counter
	schedulerRunSeconds        *prometheus.HistogramVec
	crawlsInFlight             prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_crawl_outcomes_total",
				Help: "Total number of crawl steps, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_fetch_fallbacks_total",
				Help: "Total number of fetches retried with the browser user agent.",
			},
		)

		artifactsStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_artifacts_stored_total",
				Help: "Total number of artifact writes, labeled by result.",
			},
			[]string{"result"},
		)

		cleanupDeletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_cleanup_deleted_total",
				Help: "Total number of artifacts removed by cleanup, labeled by pass.",
			},
			[]string{"pass"},
		)

		cleanupBytesFreedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_cleanup_bytes_freed_total",
				Help: "Total number of artifact bytes removed by cleanup.",
			},
		)

		ledgerPurgedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_ledger_purged_total",
				Help: "Total number of ledger entries purged.",
			},
		)

		schedulerRunSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_scheduler_run_seconds",
				Help:    "Histogram of scheduled maintenance task durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"task", "status"},
		)

		crawlsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_crawls_in_flight",
				Help: "Number of submitted crawl trees still running.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawl records the terminal outcome of one crawl step.
func ObserveCrawl(outcome string) {
	Init()
	crawlOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records bytes fetched from a site.
func ObserveFetch(site string, bytesFetched int) {
	Init()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveFallback increments the fallback fetch counter.
func ObserveFallback() {
	Init()
	fetchFallbacksTotal.Inc()
}

// ObserveArtifact records an artifact write result ("stored" or "failed").
func ObserveArtifact(result string) {
	Init()
	artifactsStoredTotal.WithLabelValues(result).Inc()
}

// ObserveCleanup records artifacts deleted by one cleanup pass.
func ObserveCleanup(pass string, deleted int, bytesFreed int64) {
	Init()
	if deleted > 0 {
		cleanupDeletedTotal.WithLabelValues(pass).Add(float64(deleted))
	}
	if bytesFreed > 0 {
		cleanupBytesFreedTotal.Add(float64(bytesFreed))
	}
}

// ObserveLedgerPurge records purged ledger rows.
func ObserveLedgerPurge(rows int64) {
	Init()
	if rows > 0 {
		ledgerPurgedTotal.Add(float64(rows))
	}
}

// ObserveSchedulerRun records one maintenance task execution.
func ObserveSchedulerRun(task string, err error, duration time.Duration) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	schedulerRunSeconds.WithLabelValues(task, status).Observe(duration.Seconds())
}

// IncCrawlsInFlight increments the in-flight crawl gauge.
func IncCrawlsInFlight() {
	Init()
	crawlsInFlight.Inc()
}

// DecCrawlsInFlight decrements the in-flight crawl gauge.
func DecCrawlsInFlight() {
	Init()
	crawlsInFlight.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
