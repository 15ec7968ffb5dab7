package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grovelabs/grove/pkg/metrics"
)

// lifecycleMetrics is the Prometheus implementation of
// metrics.LifecycleMetrics.
type lifecycleMetrics struct {
	cycles             *prometheus.CounterVec
	cycleDatasets      prometheus.Histogram
	cycleDuration      prometheus.Histogram
	snapshotsCreated   prometheus.Counter
	snapshotsDestroyed prometheus.Counter
	transferDuration   prometheus.Histogram
	transfersSkipped   prometheus.Counter
}

// NewLifecycleMetrics creates a Prometheus-backed LifecycleMetrics
// instance. Returns nil when metrics are disabled.
func NewLifecycleMetrics() metrics.LifecycleMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.Registry()

	return &lifecycleMetrics{
		cycles: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "grove_backup_cycles_total",
			Help: "Total backup cycles by outcome",
		}, []string{"outcome"}), // "ok", "error"
		cycleDatasets: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "grove_backup_cycle_datasets",
			Help:    "Datasets processed per cycle",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
		cycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "grove_backup_cycle_duration_seconds",
			Help:    "Duration of backup cycles",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		snapshotsCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_backup_snapshots_created_total",
			Help: "Total cycle snapshots created",
		}),
		snapshotsDestroyed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_backup_snapshots_destroyed_total",
			Help: "Total snapshots destroyed by retention trimming",
		}),
		transferDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "grove_backup_transfer_duration_seconds",
			Help:    "Duration of incremental transfer validations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		transfersSkipped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "grove_backup_transfers_skipped_total",
			Help: "Datasets skipped for having fewer than two snapshots",
		}),
	}
}

func (m *lifecycleMetrics) RecordCycle(datasets int, duration time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDatasets.Observe(float64(datasets))
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *lifecycleMetrics) RecordSnapshotCreated() {
	m.snapshotsCreated.Inc()
}

func (m *lifecycleMetrics) RecordSnapshotDestroyed() {
	m.snapshotsDestroyed.Inc()
}

func (m *lifecycleMetrics) RecordTransferValidated(duration time.Duration) {
	m.transferDuration.Observe(duration.Seconds())
}

func (m *lifecycleMetrics) RecordTransferSkipped() {
	m.transfersSkipped.Inc()
}
