// Package metrics provides Prometheus metrics for the retention service.
//
// # Metrics Categories
//
//   - Run Metrics: runs by outcome, duration, records deleted and archived,
//     archive bytes, runs suppressed by legal hold
//   - Tick Metrics: scheduler ticks, tick duration, policy dispositions
//   - Request Metrics: admin API request count and latency
//
// # Usage
//
// A Collector is both an engine.Observer and a scheduler.Observer:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng, _ := engine.New(engineCfg, engine.Deps{..., Observer: collector})
//	sched, _ := scheduler.New(store, eng, scheduler.WithObserver(collector))
//	router.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Organization labels are capped at DefaultMaxOrganizations distinct values.
// Later organizations are folded into the "other" label. Policy ids are never
// used as labels.
package metrics
