package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"chryso-hq/forms/pkg/config"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/retention/scheduler"
)

// DefaultMaxOrganizations caps distinct organization label values.
// Organizations beyond the cap are reported as OverflowLabel.
const DefaultMaxOrganizations = 1000

// OverflowLabel replaces label values once the cardinality cap is hit.
const OverflowLabel = "other"

// Collector owns the Prometheus registry for the retention service. It
// implements engine.Observer and scheduler.Observer so it can be handed
// directly to both.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runMetrics     *RunMetrics
	tickMetrics    *TickMetrics
	requestMetrics *RequestMetrics

	organizations *CardinalityLimiter
}

var (
	_ engine.Observer    = (*Collector)(nil)
	_ scheduler.Observer = (*Collector)(nil)
)

// NewCollector creates a collector registering into registry. A nil
// registry gets a fresh one, so separate collectors never collide.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	sched, _ := scheduler.New(store, eng, scheduler.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		runMetrics:     NewRunMetrics(cfg, registry),
		tickMetrics:    NewTickMetrics(cfg, registry),
		requestMetrics: NewRequestMetrics(cfg, registry),
		organizations:  NewCardinalityLimiter(DefaultMaxOrganizations),
	}
}

// ObserveRun records a finished policy run. Dry runs are ignored.
func (c *Collector) ObserveRun(res *engine.Result) {
	if !c.config.IsEnabled() || res == nil || res.DryRun {
		return
	}

	org := res.OrganizationID
	if !c.organizations.Allow(org) {
		org = OverflowLabel
	}
	c.runMetrics.RecordRun(org, string(res.EntityType), res)
}

// ObserveTick records one scheduler evaluation pass.
func (c *Collector) ObserveTick(report *scheduler.TickReport) {
	if !c.config.IsEnabled() || report == nil {
		return
	}
	c.tickMetrics.RecordTick(report)
}

// RecordRequest records an admin API request.
func (c *Collector) RecordRequest(method, route string, status int, seconds float64) {
	if !c.config.IsEnabled() {
		return
	}
	c.requestMetrics.RecordRequest(method, route, status, seconds)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter tracks unique label sets and refuses new ones past a
// fixed maximum.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
