package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge outcome labels
const (
	ResultSuccess = "success"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facegraph",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facegraph",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facegraph",
			Name:      "merges_total",
			Help:      "Cluster merges by outcome.",
		},
		[]string{"result"},
	)
	mergeRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facegraph",
			Name:      "merge_rows_total",
			Help:      "Rows rewritten or deleted by committed merges.",
		},
		[]string{"kind"},
	)
	mergeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facegraph",
			Name:      "merge_duration_seconds",
			Help:      "Cluster merge duration in seconds, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	txRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facegraph",
			Name:      "tx_retries_total",
			Help:      "Transactions rerun after a conflict.",
		},
		[]string{"driver"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, merges, mergeRows, mergeDuration, txRetries)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordMerge counts one merge attempt. rows maps a row kind such as
// "faces_updated" to its count and is only given for committed merges.
func RecordMerge(result string, duration time.Duration, rows map[string]int64) {
	RegisterMetrics()
	merges.WithLabelValues(result).Inc()
	mergeDuration.WithLabelValues(result).Observe(duration.Seconds())
	for kind, n := range rows {
		if n > 0 {
			mergeRows.WithLabelValues(kind).Add(float64(n))
		}
	}
}

func RecordTxRetry(driver string) {
	RegisterMetrics()
	txRetries.WithLabelValues(driver).Inc()
}
