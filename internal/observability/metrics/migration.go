// Package metrics provides migration metrics for observability
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics contains Prometheus metrics for migration runs
type MigrationMetrics struct {
	registry *prometheus.Registry

	// Run level metrics
	runsTotal   *prometheus.CounterVec // by trigger: scheduled, manual, forced
	runDuration prometheus.Histogram

	// Work counters
	captionsFoundTotal  prometheus.Counter
	eventsCreatedTotal  prometheus.Counter
	keysDeletedTotal    prometheus.Counter
	errorsTotal         *prometheus.CounterVec // by category
	camerasSkippedTotal prometheus.Counter     // lock contention skips

	// Cache pressure
	keysNearExpiryGauge prometheus.Gauge
}

// NewMigrationMetrics creates and registers migration metrics on registry.
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize migration metrics: %w", err)
	}
	return m, nil
}

func (m *MigrationMetrics) initMetrics() error {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_runs_total",
			Help: "Total number of migration runs by trigger",
		},
		[]string{"trigger"},
	)

	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "migration_run_duration_seconds",
			Help:    "Duration of migration runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	m.captionsFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_captions_found_total",
			Help: "Total number of expiring caption records found by scans",
		},
	)

	m.eventsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_events_created_total",
			Help: "Total number of merged events written to durable storage",
		},
	)

	m.keysDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_keys_deleted_total",
			Help: "Total number of cache records reaped after migration",
		},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_errors_total",
			Help: "Total number of migration errors by category",
		},
		[]string{"category"},
	)

	m.camerasSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_cameras_skipped_total",
			Help: "Total number of cameras skipped because a run was already in flight",
		},
	)

	m.keysNearExpiryGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "migration_keys_near_expiry",
			Help: "Number of cache keys near expiry seen by the latest scan",
		},
	)

	collectors := []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.captionsFoundTotal,
		m.eventsCreatedTotal,
		m.keysDeletedTotal,
		m.errorsTotal,
		m.camerasSkippedTotal,
		m.keysNearExpiryGauge,
	}
	for _, collector := range collectors {
		if err := m.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun records one completed migration run.
func (m *MigrationMetrics) RecordRun(trigger string, durationSeconds float64) {
	m.runsTotal.WithLabelValues(trigger).Inc()
	m.runDuration.Observe(durationSeconds)
}

// RecordWork folds one run's counters into the totals.
func (m *MigrationMetrics) RecordWork(captionsFound, eventsCreated, keysDeleted int) {
	m.captionsFoundTotal.Add(float64(captionsFound))
	m.eventsCreatedTotal.Add(float64(eventsCreated))
	m.keysDeletedTotal.Add(float64(keysDeleted))
	m.keysNearExpiryGauge.Set(float64(captionsFound))
}

// RecordError counts one error of the given category.
func (m *MigrationMetrics) RecordError(category string) {
	m.errorsTotal.WithLabelValues(category).Inc()
}

// RecordCameraSkipped counts one camera skipped due to lock contention.
func (m *MigrationMetrics) RecordCameraSkipped() {
	m.camerasSkippedTotal.Inc()
}
