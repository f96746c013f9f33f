package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "punto_api_build_info",
			Help: "Build information of the Punto API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punto_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "punto_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "punto_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Review metrics
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punto_api_reviews_total",
			Help: "Total number of submission review decisions",
		},
		[]string{"decision", "outcome"}, // outcome: "applied", "conflict", "error"
	)

	// Ledger metrics
	PaymentsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punto_api_payments_opened_total",
			Help: "Total number of pending payments opened on the ledger",
		},
		[]string{"role"},
	)

	PayoutsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punto_api_payouts_recorded_total",
			Help: "Total number of payment settlements recorded",
		},
		[]string{"status"}, // "paid", "failed"
	)

	// Chain metrics
	BalanceRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punto_api_balance_refreshes_total",
			Help: "Total number of treasury balance refreshes",
		},
		[]string{"status"},
	)

	BalanceRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "punto_api_balance_refresh_duration_seconds",
			Help:    "Duration of Solana RPC balance reads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordReview records the outcome of a review decision.
func RecordReview(decision string, err error, conflict bool) {
	outcome := "applied"
	switch {
	case conflict:
		outcome = "conflict"
	case err != nil:
		outcome = "error"
	}
	ReviewsTotal.WithLabelValues(decision, outcome).Inc()
}

// RecordBalanceRefresh records metrics for a treasury balance read.
func RecordBalanceRefresh(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BalanceRefreshesTotal.WithLabelValues(status).Inc()
	BalanceRefreshDuration.Observe(duration.Seconds())
}
