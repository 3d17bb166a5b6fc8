// Package metrics defines Prometheus collectors for storage backend operations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

var (
	// OperationsTotal counts backend operations by backend key, operation and status.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_operations_total",
			Help: "Storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// OperationDuration observes operation latency in seconds.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filestore_operation_duration_seconds",
			Help:    "Storage backend operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BytesTotal counts payload bytes moved by direction ("upload", "download").
	BytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_bytes_total",
			Help: "Payload bytes moved through storage backends",
		},
		[]string{"backend", "direction"},
	)

	// RegisteredBackends tracks the number of open, registered backends.
	RegisteredBackends = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filestore_registered_backends",
			Help: "Backends currently registered by the pool manager",
		},
	)
)

// Register adds all collectors to the default Prometheus registerer.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			OperationDuration,
			BytesTotal,
			RegisteredBackends,
		)
	})
}

// ObserveOperation records one finished operation
func ObserveOperation(backend, operation, status string, start time.Time) {
	OperationsTotal.WithLabelValues(backend, operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AddBytes records transferred payload bytes
func AddBytes(backend, direction string, n int64) {
	if n <= 0 {
		return
	}
	BytesTotal.WithLabelValues(backend, direction).Add(float64(n))
}
