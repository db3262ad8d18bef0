package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"chryso-hq/forms/pkg/config"
	"chryso-hq/forms/pkg/retention/engine"
)

// RunMetrics tracks policy executions.
//
// Metrics:
//   - chryso_retention_runs_total: Runs by organization, entity type and outcome
//   - chryso_retention_run_duration_seconds: Run duration
//   - chryso_retention_records_deleted_total: Records deleted
//   - chryso_retention_records_archived_total: Records archived
//   - chryso_retention_archived_bytes_total: Archive bytes written
//   - chryso_retention_held_total: Runs suppressed by a policy legal hold
type RunMetrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	deletedTotal    *prometheus.CounterVec
	archivedTotal   *prometheus.CounterVec
	archivedBytes   *prometheus.CounterVec
	policyHeldTotal *prometheus.CounterVec
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "runs_total",
				Help:      "Total number of retention policy runs",
			},
			[]string{"organization", "entity_type", "outcome"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "run_duration_seconds",
				Help:      "Duration of retention policy runs in seconds",
				// Runs range from an empty scan to a large archive and delete
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 9), // 10ms to ~11min
			},
			[]string{"entity_type"},
		),

		deletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "records_deleted_total",
				Help:      "Total number of records deleted by retention policies",
			},
			[]string{"organization", "entity_type"},
		),

		archivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "records_archived_total",
				Help:      "Total number of records archived before deletion",
			},
			[]string{"organization", "entity_type"},
		),

		archivedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "archived_bytes_total",
				Help:      "Total bytes written to archives",
			},
			[]string{"organization"},
		),

		policyHeldTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "held_total",
				Help:      "Runs that deleted nothing because the policy is under legal hold",
			},
			[]string{"organization"},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.runDuration,
		rm.deletedTotal,
		rm.archivedTotal,
		rm.archivedBytes,
		rm.policyHeldTotal,
	)

	return rm
}

// RecordRun records one finished run. Deleted counts are recorded for
// failed runs too since deletion is not rolled back.
func (rm *RunMetrics) RecordRun(org, entityType string, res *engine.Result) {
	rm.runsTotal.WithLabelValues(org, entityType, string(res.Outcome())).Inc()
	rm.runDuration.WithLabelValues(entityType).Observe(res.Duration.Seconds())

	if res.Deleted > 0 {
		rm.deletedTotal.WithLabelValues(org, entityType).Add(float64(res.Deleted))
	}
	if res.Archived > 0 {
		rm.archivedTotal.WithLabelValues(org, entityType).Add(float64(res.Archived))
	}
	if res.ArchivedBytes > 0 {
		rm.archivedBytes.WithLabelValues(org).Add(float64(res.ArchivedBytes))
	}
	if res.PolicyHeld {
		rm.policyHeldTotal.WithLabelValues(org).Inc()
	}
}
