// Package observability provides Prometheus metrics functionality for
// monitoring the migration engine.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metricspkg "github.com/tphakala/cctview-go/internal/observability/metrics"
)

// Metrics aggregates all metric groups on one registry.
type Metrics struct {
	registry  *prometheus.Registry
	Migration *metricspkg.MigrationMetrics
}

// NewMetrics creates a registry with all metric groups registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	migration, err := metricspkg.NewMigrationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Migration: migration,
	}, nil
}

// RegisterHandlers attaches the metrics endpoint to mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
