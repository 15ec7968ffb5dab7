// Package prometheus provides the Prometheus-backed implementations of the
// harness metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grovelabs/grove/pkg/metrics"
)

// churnMetrics is the Prometheus implementation of metrics.ChurnMetrics.
type churnMetrics struct {
	sweeps        prometheus.Counter
	sweepFiles    prometheus.Histogram
	sweepDuration prometheus.Histogram
	readOps       prometheus.Counter
	writeOps      prometheus.Counter
	fileErrors    prometheus.Counter
}

// NewChurnMetrics creates a Prometheus-backed ChurnMetrics instance.
// Returns nil when metrics are disabled (metrics.Init not called).
func NewChurnMetrics() metrics.ChurnMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.Registry()

	return &churnMetrics{
		sweeps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_churn_sweeps_total",
			Help: "Total completed churn sweeps",
		}),
		sweepFiles: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "grove_churn_sweep_files",
			Help:    "Files visited per sweep",
			Buckets: prometheus.ExponentialBuckets(10, 4, 6),
		}),
		sweepDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "grove_churn_sweep_duration_seconds",
			Help:    "Duration of churn sweeps",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		readOps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_churn_read_ops_total",
			Help: "Total 1 KiB read operations",
		}),
		writeOps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_churn_write_ops_total",
			Help: "Total 1 KiB write operations",
		}),
		fileErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_churn_file_errors_total",
			Help: "Per-file churn failures that were skipped",
		}),
	}
}

func (m *churnMetrics) RecordSweep(files int, duration time.Duration) {
	m.sweeps.Inc()
	m.sweepFiles.Observe(float64(files))
	m.sweepDuration.Observe(duration.Seconds())
}

func (m *churnMetrics) RecordOps(reads, writes uint64) {
	m.readOps.Add(float64(reads))
	m.writeOps.Add(float64(writes))
}

func (m *churnMetrics) RecordFileError() {
	m.fileErrors.Inc()
}
