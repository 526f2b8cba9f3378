// Package metrics provides Prometheus metrics for the Citrus services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citrus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	libraryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrus_library_mutations_total",
			Help: "Library operations by kind and whether they changed state",
		},
		[]string{"op", "changed"},
	)

	libraryFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citrus_library_files",
			Help: "Number of entries in the library",
		},
	)

	libraryFolders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citrus_library_folders",
			Help: "Number of folders in the library, Root included",
		},
	)

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrus_reconcile_total",
			Help: "Remote reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	reconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citrus_reconcile_duration_seconds",
			Help:    "Time spent fetching and merging the remote listing",
			Buckets: prometheus.DefBuckets,
		},
	)

	storeWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrus_store_writes_total",
			Help: "Persistent store writes by key and status",
		},
		[]string{"key", "status"},
	)

	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrus_scans_total",
			Help: "Document scans by status",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordMutation counts one library operation.
func RecordMutation(op string, changed bool) {
	libraryMutationsTotal.WithLabelValues(op, strconv.FormatBool(changed)).Inc()
}

// SetLibrarySize updates the collection size gauges.
func SetLibrarySize(files, folders int) {
	libraryFiles.Set(float64(files))
	libraryFolders.Set(float64(folders))
}

// RecordReconcile records a reconciliation outcome: "changed", "unchanged" or "failed".
func RecordReconcile(outcome string, duration time.Duration) {
	reconcileTotal.WithLabelValues(outcome).Inc()
	reconcileDuration.Observe(duration.Seconds())
}

// RecordStoreWrite counts a persistent store write.
func RecordStoreWrite(key string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	storeWritesTotal.WithLabelValues(key, status).Inc()
}

// RecordScan counts a scan attempt.
func RecordScan(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	scansTotal.WithLabelValues(status).Inc()
}

// Middleware records request counts and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
