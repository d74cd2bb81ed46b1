package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Sync pipeline metrics
	SyncRuns     *prometheus.CounterVec
	SyncDuration prometheus.Histogram

	// Last-run snapshot sizes (gauges - reflect the most recent sync)
	RecordsFetched prometheus.Gauge
	TasksPersisted prometheus.Gauge
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Sync runs by outcome (counter - only goes up)
		SyncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatchboard_sync_runs_total",
			Help: "Total number of sync runs by status",
		}, []string{"status"}), // status: "success", "empty", "error"

		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatchboard_sync_duration_seconds",
			Help:    "Wall-clock duration of sync runs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		RecordsFetched: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchboard_records_fetched",
			Help: "Raw records fetched by the most recent sync",
		}),

		TasksPersisted: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchboard_tasks_persisted",
			Help: "Expanded tasks persisted by the most recent sync",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (may be nil if not initialized)
func GetMetrics() *Metrics {
	return globalMetrics
}
