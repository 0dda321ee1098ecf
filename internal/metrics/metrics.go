// Package metrics exposes Prometheus collectors for the HTTP layer and the
// file service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safedrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safedrop_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// FileOperationsTotal counts upload, download and delete attempts by result.
	FileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safedrop_file_operations_total",
			Help: "Total number of file operations",
		},
		[]string{"operation", "result"},
	)

	// DecryptFailuresTotal counts envelopes that failed to decrypt or verify.
	DecryptFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safedrop_decrypt_failures_total",
			Help: "Total number of stored files that failed decryption or integrity checks",
		},
	)

	// ShareChangesTotal counts share state transitions.
	ShareChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safedrop_share_changes_total",
			Help: "Total number of share enable and revoke transitions",
		},
		[]string{"action"},
	)
)

// ObserveOperation records the outcome of a file operation.
func ObserveOperation(operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	FileOperationsTotal.WithLabelValues(operation, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters never become label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
