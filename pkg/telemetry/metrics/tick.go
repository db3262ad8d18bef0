package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"chryso-hq/forms/pkg/config"
	"chryso-hq/forms/pkg/retention/scheduler"
)

// TickMetrics tracks scheduler evaluation passes.
//
// Metrics:
//   - chryso_scheduler_ticks_total: Ticks by result ("ok", "error")
//   - chryso_scheduler_tick_duration_seconds: Tick duration
//   - chryso_scheduler_policies_evaluated: Active policies seen by the last tick
//   - chryso_scheduler_policies_total: Policies by tick disposition
//   - chryso_scheduler_last_tick_timestamp_seconds: Start time of the last tick
type TickMetrics struct {
	ticksTotal    *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	evaluated     prometheus.Gauge
	policiesTotal *prometheus.CounterVec
	lastTick      prometheus.Gauge
}

// NewTickMetrics creates and registers scheduler metrics.
func NewTickMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TickMetrics {
	tm := &TickMetrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scheduler",
				Name:      "ticks_total",
				Help:      "Total number of scheduler ticks",
			},
			[]string{"result"},
		),

		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scheduler",
				Name:      "tick_duration_seconds",
				Help:      "Duration of scheduler ticks in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
			},
		),

		evaluated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scheduler",
				Name:      "policies_evaluated",
				Help:      "Number of active policies evaluated by the last tick",
			},
		),

		policiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scheduler",
				Name:      "policies_total",
				Help:      "Policies handled by ticks, by disposition",
			},
			[]string{"disposition"},
		),

		lastTick: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scheduler",
				Name:      "last_tick_timestamp_seconds",
				Help:      "Unix time the last tick started",
			},
		),
	}

	registry.MustRegister(
		tm.ticksTotal,
		tm.tickDuration,
		tm.evaluated,
		tm.policiesTotal,
		tm.lastTick,
	)

	return tm
}

// RecordTick records one tick report.
func (tm *TickMetrics) RecordTick(report *scheduler.TickReport) {
	result := "ok"
	if report.Err != nil {
		result = "error"
	}
	tm.ticksTotal.WithLabelValues(result).Inc()
	tm.tickDuration.Observe(report.Duration.Seconds())
	tm.lastTick.Set(float64(report.StartedAt.Unix()))

	if report.Err != nil {
		return
	}
	tm.evaluated.Set(float64(report.Evaluated))
	tm.policiesTotal.WithLabelValues("succeeded").Add(float64(report.Succeeded))
	tm.policiesTotal.WithLabelValues("failed").Add(float64(report.Failed))
	tm.policiesTotal.WithLabelValues("skipped").Add(float64(report.Skipped))
}
