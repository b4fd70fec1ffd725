// Package telemetry exposes Prometheus collectors for the search-core service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchcore_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchcore_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	admissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchcore_admissions_total",
			Help: "Total crawl admissions, labeled by priority and outcome.",
		},
		[]string{"priority", "outcome"},
	)

	queueBacklogDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchcore_queue_backlog_depth",
			Help: "Last observed ingestion queue backlog, labeled by priority.",
		},
		[]string{"priority"},
	)

	slaEstimateSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchcore_sla_estimate_seconds",
			Help:    "Histogram of computed SLA estimates, labeled by priority.",
			Buckets: []float64{30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
		[]string{"priority"},
	)

	searchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchcore_search_queries_total",
			Help: "Total search queries, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, rec.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAdmission counts a crawl admission outcome.
func ObserveAdmission(priority, outcome string) {
	admissionsTotal.WithLabelValues(priority, outcome).Inc()
}

// SetQueueBacklog records the backlog depth observed during admission.
func SetQueueBacklog(priority string, depth int) {
	queueBacklogDepth.WithLabelValues(priority).Set(float64(depth))
}

// ObserveSLAEstimate records the lead time of a computed SLA estimate.
func ObserveSLAEstimate(priority string, lead time.Duration) {
	slaEstimateSeconds.WithLabelValues(priority).Observe(lead.Seconds())
}

// ObserveSearchQuery counts a search query outcome.
func ObserveSearchQuery(outcome string) {
	searchQueriesTotal.WithLabelValues(outcome).Inc()
}
