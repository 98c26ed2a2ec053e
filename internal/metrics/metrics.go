// Package metrics exposes Prometheus collectors for the crawl pipeline.
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
	requestsTotal      *prometheus.CounterVec
	requestErrorsTotal *prometheus.CounterVec
	pagesTotal         *prometheus.CounterVec
	recordsTotal       *prometheus.CounterVec
	duplicatesTotal    *prometheus.CounterVec
	entryFailuresTotal *prometheus.CounterVec
	earlyStopsTotal    *prometheus.CounterVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_requests_total",
				Help: "Total number of HTTP fetches issued, labeled by site.",
			},
			[]string{"site"},
		)

		requestErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_request_errors_total",
				Help: "Total number of failed HTTP fetches, labeled by site.",
			},
			[]string{"site"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_pages_total",
				Help: "Total number of list and detail pages the crawl engine consumed, labeled by source.",
			},
			[]string{"source"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_records_total",
				Help: "Total number of records successfully stored, labeled by source.",
			},
			[]string{"source"},
		)

		duplicatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_duplicates_total",
				Help: "Total number of list entries already present in the store, labeled by source.",
			},
			[]string{"source"},
		)

		entryFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_entry_failures_total",
				Help: "Total number of entries that failed extraction or persistence, labeled by source.",
			},
			[]string{"source"},
		)

		earlyStopsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "javsync_early_stops_total",
				Help: "Total number of crawls stopped by the consecutive-duplicate threshold, labeled by source.",
			},
			[]string{"source"},
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

// ObserveRequest counts one fetch against the site it targets.
func ObserveRequest(site string) {
	requestsTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveRequestError counts one failed fetch.
func ObserveRequestError(site string) {
	requestErrorsTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObservePage counts one page processed by the crawl engine.
func ObservePage(source string) {
	pagesTotal.WithLabelValues(source).Inc()
}

// ObserveRecord counts one stored record.
func ObserveRecord(source string) {
	recordsTotal.WithLabelValues(source).Inc()
}

// ObserveDuplicate counts one list entry skipped as already stored.
func ObserveDuplicate(source string) {
	duplicatesTotal.WithLabelValues(source).Inc()
}

// ObserveEntryFailure counts one entry that produced no record.
func ObserveEntryFailure(source string) {
	entryFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveEarlyStop counts one crawl ended by the duplicate threshold.
func ObserveEarlyStop(source string) {
	earlyStopsTotal.WithLabelValues(source).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
