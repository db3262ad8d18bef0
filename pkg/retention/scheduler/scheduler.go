package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/telemetry/tracing"
)

// Defaults applied by New.
const (
	DefaultSchedule      = "0 * * * *"
	DefaultMaxConcurrent = 4
	DefaultLeaseTTL      = time.Hour
)

var (
	// ErrLeaseHeld is returned by RunNow when another run, in this process
	// or another instance, holds the policy lease.
	ErrLeaseHeld = errors.New("retention policy is leased by another run")

	// ErrPolicyInactive is returned by RunNow for deactivated policies.
	ErrPolicyInactive = errors.New("retention policy is inactive")
)

// Executor runs a single policy.
type Executor interface {
	Execute(ctx context.Context, p *retention.Policy, now time.Time) *engine.Result
}

// Observer receives tick reports, typically a metrics collector.
type Observer interface {
	ObserveTick(report *TickReport)
}

// TickReport summarizes one evaluation pass over the active policies.
type TickReport struct {
	StartedAt time.Time
	Duration  time.Duration

	// Evaluated is the number of active policies considered.
	Evaluated int

	// Eligible is the number of policies ShouldExecute accepted.
	Eligible int

	Succeeded int
	Failed    int

	// Skipped counts eligible policies not run because another run held
	// the lease or had already run them.
	Skipped int

	Results []*engine.Result

	// Err is set when the active policies could not be loaded.
	Err error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSchedule sets the cron expression driving ticks.
func WithSchedule(spec string) Option {
	return func(s *Scheduler) { s.schedule = spec }
}

// WithMaxConcurrent bounds the number of policies run in parallel per tick.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) { s.maxConcurrent = n }
}

// WithLeaseTTL sets how long a policy lease is held before it expires.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(s *Scheduler) { s.leaseTTL = ttl }
}

// WithInstanceID sets the lease owner name. Instances sharing a policy
// store must use distinct ids.
func WithInstanceID(id string) Option {
	return func(s *Scheduler) { s.instanceID = id }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithObserver registers a tick observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithTracer sets the tracer for tick spans. Runs started by a tick are
// children of its span.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// Scheduler evaluates active policies on a cron schedule and runs the due
// ones through an Executor. Each run is guarded by a lease on the policy so
// several instances may share one policy store.
type Scheduler struct {
	store    retention.PolicyStore
	executor Executor
	observer Observer
	tracer   trace.Tracer

	schedule      string
	maxConcurrent int
	leaseTTL      time.Duration
	instanceID    string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	logger  *slog.Logger
}

// New creates a scheduler. It does not start ticking until Start is called.
func New(store retention.PolicyStore, executor Executor, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("policy store cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}

	s := &Scheduler{
		store:         store,
		executor:      executor,
		schedule:      DefaultSchedule,
		maxConcurrent: DefaultMaxConcurrent,
		leaseTTL:      DefaultLeaseTTL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.instanceID == "" {
		s.instanceID = uuid.NewString()
	}
	if s.maxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent must be at least 1, got %d", s.maxConcurrent)
	}
	if s.leaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive, got %s", s.leaseTTL)
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	s.tracer = tracing.OrNoop(s.tracer)
	s.logger = s.logger.With("component", "retention.scheduler", "instance_id", s.instanceID)
	return s, nil
}

// InstanceID returns the lease owner name used by this scheduler.
func (s *Scheduler) InstanceID() string {
	return s.instanceID
}

// Start begins ticking on the configured schedule. Ticks use the local
// clock. The scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() {
		s.Tick(ctx, time.Now())
	}); err != nil {
		return fmt.Errorf("failed to schedule retention tick: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", s.schedule,
		"max_concurrent", s.maxConcurrent,
		"lease_ttl", s.leaseTTL,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running tick to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled tick, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil || !s.running {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

// Tick evaluates every active policy at now and runs the due ones. A
// policy's failure never prevents the others from running.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) *TickReport {
	report := &TickReport{StartedAt: now}
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, tracing.SpanRetentionTick,
		trace.WithAttributes(attribute.String(tracing.AttrInstanceID, s.instanceID)))
	defer func() {
		report.Duration = time.Since(started)
		span.SetAttributes(
			attribute.Int(tracing.AttrEvaluated, report.Evaluated),
			attribute.Int(tracing.AttrEligible, report.Eligible),
			attribute.Int(tracing.AttrSucceeded, report.Succeeded),
			attribute.Int(tracing.AttrFailed, report.Failed),
			attribute.Int(tracing.AttrSkipped, report.Skipped),
		)
		tracing.SetStatus(span, report.Err)
		span.End()
		if s.observer != nil {
			s.observer.ObserveTick(report)
		}
	}()

	policies, err := s.store.FindActivePolicies(ctx)
	if err != nil {
		report.Err = fmt.Errorf("load active policies: %w", err)
		s.logger.ErrorContext(ctx, "retention tick failed", "error", report.Err)
		return report
	}
	report.Evaluated = len(policies)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.maxConcurrent)

	for _, p := range policies {
		if !ShouldExecute(p, now) {
			continue
		}
		report.Eligible++

		p := p
		g.Go(func() error {
			res, err := s.runLeased(ctx, p.ID, now, true)
			if err != nil {
				res = &engine.Result{
					RunID:          uuid.NewString(),
					PolicyID:       p.ID,
					OrganizationID: p.OrganizationID,
					EntityType:     p.EntityType,
					StartedAt:      now,
					Err:            err,
				}
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res == nil:
				report.Skipped++
			case res.Err != nil:
				report.Failed++
				report.Results = append(report.Results, res)
			default:
				report.Succeeded++
				report.Results = append(report.Results, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	if report.Eligible > 0 {
		s.logger.InfoContext(ctx, "retention tick completed",
			"evaluated", report.Evaluated,
			"eligible", report.Eligible,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	} else {
		s.logger.DebugContext(ctx, "retention tick completed, no policies due",
			"evaluated", report.Evaluated,
		)
	}
	return report
}

// RunNow runs the policy immediately, bypassing ShouldExecute but not the
// lease.
func (s *Scheduler) RunNow(ctx context.Context, id string, now time.Time) (*engine.Result, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrPolicyInactive
	}

	res, err := s.runLeased(ctx, id, now, false)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrLeaseHeld
	}
	return res, nil
}

// runLeased acquires the policy lease, reloads the policy and executes it.
// It returns a nil result and nil error when the run was skipped. With
// recheck, the reloaded policy must still be due, which keeps a policy
// that another run just finished from running twice. Store failures are
// recorded against the policy and returned.
func (s *Scheduler) runLeased(ctx context.Context, id string, now time.Time, recheck bool) (*engine.Result, error) {
	logger := s.logger.With("policy_id", id)

	ok, err := s.store.AcquireLease(ctx, id, s.instanceID, s.leaseTTL, now)
	if err != nil {
		return nil, s.storeFailure(ctx, logger, id, now, fmt.Errorf("acquire policy lease: %w", err))
	}
	if !ok {
		logger.InfoContext(ctx, "policy lease held by another run, skipping")
		return nil, nil
	}
	defer func() {
		if err := s.store.ReleaseLease(context.WithoutCancel(ctx), id, s.instanceID); err != nil {
			logger.WarnContext(ctx, "failed to release policy lease", "error", err)
		}
	}()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeFailure(ctx, logger, id, now, fmt.Errorf("reload policy: %w", err))
	}
	if recheck && !ShouldExecute(p, now) {
		logger.DebugContext(ctx, "policy no longer due after acquiring lease")
		return nil, nil
	}

	return s.executor.Execute(ctx, p, now), nil
}

// storeFailure logs err and records it in the policy's error stats. A
// missing policy has nothing to record against.
func (s *Scheduler) storeFailure(ctx context.Context, logger *slog.Logger, id string, now time.Time, err error) error {
	logger.ErrorContext(ctx, "policy run could not start", "error", err)
	if errors.Is(err, retention.ErrPolicyNotFound) {
		return err
	}
	if rerr := s.store.RecordFailure(context.WithoutCancel(ctx), id, err.Error(), now); rerr != nil {
		logger.WarnContext(ctx, "failed to record policy failure", "error", rerr)
	}
	return err
}
