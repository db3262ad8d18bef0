package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/retention/policystore"
	"chryso-hq/forms/pkg/telemetry/tracing"
)

var tickNow = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

// fakeExecutor records runs and marks them executed in the store.
type fakeExecutor struct {
	store *policystore.MemoryStore

	mu   sync.Mutex
	runs []string

	fail     map[string]bool
	block    chan struct{}
	started  chan string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeExecutor) Execute(ctx context.Context, p *retention.Policy, now time.Time) *engine.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.started != nil {
		f.started <- p.ID
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.runs = append(f.runs, p.ID)
	f.mu.Unlock()

	res := &engine.Result{PolicyID: p.ID, OrganizationID: p.OrganizationID}
	if f.fail[p.ID] {
		res.Err = errors.New("boom")
		_ = f.store.RecordFailure(ctx, p.ID, res.Err.Error(), now)
		return res
	}
	_ = f.store.RecordSuccess(ctx, p.ID, 0, 0, 0, now)
	return res
}

func (f *fakeExecutor) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func createPolicy(t *testing.T, store *policystore.MemoryStore, entity retention.EntityType, mutate func(p *retention.Policy)) *retention.Policy {
	t.Helper()
	p := &retention.Policy{
		OrganizationID:  "org-1",
		EntityType:      entity,
		RetentionPeriod: retention.RetentionPeriod{Value: 30, Unit: retention.UnitDays},
		ExecutionSchedule: retention.ExecutionSchedule{
			Frequency: retention.FrequencyDaily,
			Hour:      2,
		},
		IsActive: true,
	}
	if mutate != nil {
		mutate(p)
	}
	if err := store.Create(context.Background(), p); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	return p
}

func newTestScheduler(t *testing.T, store retention.PolicyStore, exec Executor, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(store, exec, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestTick_RunsOnlyDuePolicies(t *testing.T) {
	store := policystore.NewMemoryStore()
	due := createPolicy(t, store, retention.EntityForm, nil)
	createPolicy(t, store, retention.EntityReport, func(p *retention.Policy) { p.ExecutionSchedule.Hour = 3 })
	createPolicy(t, store, retention.EntityUser, func(p *retention.Policy) { p.IsActive = false })

	exec := &fakeExecutor{store: store}
	s := newTestScheduler(t, store, exec)

	report := s.Tick(context.Background(), tickNow)

	if report.Err != nil {
		t.Fatalf("Tick() error = %v", report.Err)
	}
	if report.Evaluated != 2 || report.Eligible != 1 || report.Succeeded != 1 {
		t.Errorf("report = %+v", report)
	}
	if exec.runCount() != 1 || exec.runs[0] != due.ID {
		t.Errorf("runs = %v, want [%s]", exec.runs, due.ID)
	}

	// Same hour again: already executed, not due.
	report = s.Tick(context.Background(), tickNow.Add(10*time.Minute))
	if report.Eligible != 0 || exec.runCount() != 1 {
		t.Errorf("second tick ran again: %+v", report)
	}

	// The lease is released once the run is recorded.
	ok, err := store.AcquireLease(context.Background(), due.ID, "other", time.Minute, tickNow)
	if err != nil || !ok {
		t.Errorf("lease not released: ok=%v err=%v", ok, err)
	}
}

func TestTick_FailureIsolation(t *testing.T) {
	store := policystore.NewMemoryStore()
	bad := createPolicy(t, store, retention.EntityForm, nil)
	createPolicy(t, store, retention.EntityReport, nil)

	exec := &fakeExecutor{store: store, fail: map[string]bool{bad.ID: true}}
	s := newTestScheduler(t, store, exec)

	report := s.Tick(context.Background(), tickNow)
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
	if len(report.Results) != 2 {
		t.Errorf("results = %d, want 2", len(report.Results))
	}

	p, _ := store.Get(context.Background(), bad.ID)
	if p.Stats.Errors.Count != 1 {
		t.Errorf("errors.count = %d, want 1", p.Stats.Errors.Count)
	}
}

func TestTick_SkipsLeasedPolicy(t *testing.T) {
	store := policystore.NewMemoryStore()
	p := createPolicy(t, store, retention.EntityForm, nil)

	if ok, _ := store.AcquireLease(context.Background(), p.ID, "instance-b", time.Hour, tickNow); !ok {
		t.Fatal("setup: could not take lease")
	}

	exec := &fakeExecutor{store: store}
	s := newTestScheduler(t, store, exec, WithInstanceID("instance-a"))

	report := s.Tick(context.Background(), tickNow)
	if report.Eligible != 1 || report.Skipped != 1 || exec.runCount() != 0 {
		t.Errorf("report = %+v, runs = %d", report, exec.runCount())
	}

	// An expired lease no longer blocks.
	if _, err := s.RunNow(context.Background(), p.ID, tickNow.Add(time.Hour)); err != nil {
		t.Errorf("RunNow() after lease expiry error = %v", err)
	}
}

func TestTick_ConcurrentInstancesDoNotDoubleRun(t *testing.T) {
	store := policystore.NewMemoryStore()
	createPolicy(t, store, retention.EntityForm, nil)

	exec := &fakeExecutor{
		store:   store,
		block:   make(chan struct{}),
		started: make(chan string, 1),
	}
	a := newTestScheduler(t, store, exec, WithInstanceID("a"))
	b := newTestScheduler(t, store, exec, WithInstanceID("b"))

	done := make(chan *TickReport)
	go func() { done <- a.Tick(context.Background(), tickNow) }()
	<-exec.started

	reportB := b.Tick(context.Background(), tickNow)
	close(exec.block)
	reportA := <-done

	if reportA.Succeeded != 1 {
		t.Errorf("instance a: %+v", reportA)
	}
	if reportB.Skipped != 1 || reportB.Succeeded != 0 {
		t.Errorf("instance b: %+v", reportB)
	}

	// Once a has recorded the run, b finds the policy no longer due.
	reportB = b.Tick(context.Background(), tickNow.Add(time.Minute))
	if reportB.Eligible != 0 {
		t.Errorf("instance b after a finished: %+v", reportB)
	}
	if exec.runCount() != 1 {
		t.Errorf("runs = %d, want 1", exec.runCount())
	}
}

func TestTick_MaxConcurrent(t *testing.T) {
	store := policystore.NewMemoryStore()
	for _, e := range []retention.EntityType{
		retention.EntityForm,
		retention.EntityAuditLog,
		retention.EntityReport,
		retention.EntityUser,
		retention.EntityTemplate,
	} {
		createPolicy(t, store, e, nil)
	}

	exec := &fakeExecutor{store: store, started: make(chan string, 5), block: make(chan struct{})}
	s := newTestScheduler(t, store, exec, WithMaxConcurrent(2))

	done := make(chan *TickReport)
	go func() { done <- s.Tick(context.Background(), tickNow) }()

	// Two runs start and block; the rest wait for a slot.
	<-exec.started
	<-exec.started
	time.Sleep(20 * time.Millisecond)
	close(exec.block)

	report := <-done
	if report.Succeeded != 5 {
		t.Errorf("succeeded = %d, want 5", report.Succeeded)
	}
	if got := exec.maxSeen.Load(); got > 2 {
		t.Errorf("max in flight = %d, want <= 2", got)
	}
}

type failingStore struct {
	retention.PolicyStore
}

func (failingStore) FindActivePolicies(ctx context.Context) ([]*retention.Policy, error) {
	return nil, retention.NewStorageError("sqlite", "find_active", errors.New("database is locked"))
}

type tickRecorder struct {
	reports []*TickReport
}

func (r *tickRecorder) ObserveTick(report *TickReport) {
	r.reports = append(r.reports, report)
}

func TestTick_StoreError(t *testing.T) {
	obs := &tickRecorder{}
	s := newTestScheduler(t, failingStore{}, &fakeExecutor{}, WithObserver(obs))

	report := s.Tick(context.Background(), tickNow)
	var se *retention.StorageError
	if !errors.As(report.Err, &se) {
		t.Errorf("Err = %v, want StorageError", report.Err)
	}
	if len(obs.reports) != 1 || obs.reports[0] != report {
		t.Error("observer did not receive the failed tick")
	}
}

func TestRunNow(t *testing.T) {
	store := policystore.NewMemoryStore()
	active := createPolicy(t, store, retention.EntityForm, func(p *retention.Policy) {
		p.ExecutionSchedule.Hour = 5
	})
	inactive := createPolicy(t, store, retention.EntityReport, func(p *retention.Policy) { p.IsActive = false })
	leased := createPolicy(t, store, retention.EntityUser, nil)
	if ok, _ := store.AcquireLease(context.Background(), leased.ID, "someone-else", time.Hour, tickNow); !ok {
		t.Fatal("setup: could not take lease")
	}

	exec := &fakeExecutor{store: store}
	s := newTestScheduler(t, store, exec)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"outside schedule hour still runs", active.ID, nil},
		{"inactive", inactive.ID, ErrPolicyInactive},
		{"leased elsewhere", leased.ID, ErrLeaseHeld},
		{"unknown", "missing", retention.ErrPolicyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.RunNow(context.Background(), tt.id, tickNow)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RunNow() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (res == nil || res.PolicyID != tt.id) {
				t.Errorf("RunNow() result = %+v", res)
			}
		})
	}
}

func TestRunNow_DuringTick(t *testing.T) {
	store := policystore.NewMemoryStore()
	p := createPolicy(t, store, retention.EntityForm, nil)

	exec := &fakeExecutor{
		store:   store,
		block:   make(chan struct{}),
		started: make(chan string, 2),
	}
	s := newTestScheduler(t, store, exec)

	done := make(chan *TickReport)
	go func() { done <- s.Tick(context.Background(), tickNow) }()
	<-exec.started

	// Same instance, same policy: the tick's lease must hold.
	_, errFirst := s.RunNow(context.Background(), p.ID, tickNow)
	_, errSecond := s.RunNow(context.Background(), p.ID, tickNow.Add(time.Minute))
	close(exec.block)
	report := <-done

	for i, err := range []error{errFirst, errSecond} {
		if !errors.Is(err, ErrLeaseHeld) {
			t.Errorf("RunNow #%d error = %v, want ErrLeaseHeld", i+1, err)
		}
	}
	if report.Succeeded != 1 {
		t.Errorf("tick report = %+v", report)
	}
	if got := exec.maxSeen.Load(); got != 1 {
		t.Errorf("max in flight = %d, want 1", got)
	}
	if exec.runCount() != 1 {
		t.Errorf("runs = %d, want 1", exec.runCount())
	}

	// The lease is released once the tick run finishes.
	if _, err := s.RunNow(context.Background(), p.ID, tickNow.Add(2*time.Minute)); err != nil {
		t.Errorf("RunNow after tick error = %v", err)
	}
}

// leaseFailingStore fails lease acquisition as a broken database would.
type leaseFailingStore struct {
	*policystore.MemoryStore
}

func (leaseFailingStore) AcquireLease(ctx context.Context, id, owner string, ttl time.Duration, now time.Time) (bool, error) {
	return false, retention.NewStorageError("sqlite", "acquire_lease", errors.New("disk I/O error"))
}

func TestLeaseStoreError(t *testing.T) {
	mem := policystore.NewMemoryStore()
	p := createPolicy(t, mem, retention.EntityForm, nil)
	store := leaseFailingStore{mem}

	exec := &fakeExecutor{store: mem}
	s := newTestScheduler(t, store, exec)

	t.Run("tick counts a failure", func(t *testing.T) {
		report := s.Tick(context.Background(), tickNow)
		if report.Failed != 1 || report.Skipped != 0 || report.Succeeded != 0 {
			t.Fatalf("report = %+v", report)
		}
		var se *retention.StorageError
		if len(report.Results) != 1 || !errors.As(report.Results[0].Err, &se) {
			t.Fatalf("results = %+v, want one StorageError", report.Results)
		}
		if report.Results[0].PolicyID != p.ID {
			t.Errorf("result policy = %q, want %q", report.Results[0].PolicyID, p.ID)
		}

		got, err := mem.Get(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Stats.Errors.Count != 1 || got.Stats.Errors.LastError == "" {
			t.Errorf("error stats = %+v, want one recorded failure", got.Stats.Errors)
		}
	})

	t.Run("run now returns the store error", func(t *testing.T) {
		_, err := s.RunNow(context.Background(), p.ID, tickNow)
		var se *retention.StorageError
		if !errors.As(err, &se) {
			t.Fatalf("RunNow() error = %v, want StorageError", err)
		}
		if errors.Is(err, ErrLeaseHeld) {
			t.Error("store failure reported as a held lease")
		}
	})

	if exec.runCount() != 0 {
		t.Errorf("runs = %d, want 0", exec.runCount())
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantNewErr  bool
		wantRunning bool
	}{
		{"hourly", "0 * * * *", false, true},
		{"daily at 3", "0 3 * * *", false, true},
		{"invalid schedule", "invalid cron", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := policystore.NewMemoryStore()
			s, err := New(store, &fakeExecutor{store: store}, WithSchedule(tt.schedule))
			if (err != nil) != tt.wantNewErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantNewErr)
			}
			if err != nil {
				return
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := s.Start(ctx); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if next := s.NextRun(); next == nil || !next.After(time.Now()) {
				t.Errorf("NextRun() = %v, want a future time", next)
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
			if s.NextRun() != nil {
				t.Error("NextRun() should be nil after Stop()")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	store := policystore.NewMemoryStore()
	s := newTestScheduler(t, store, &fakeExecutor{store: store})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancel")
	}
}

func TestNew_Validation(t *testing.T) {
	store := policystore.NewMemoryStore()
	exec := &fakeExecutor{store: store}

	tests := []struct {
		name  string
		store retention.PolicyStore
		exec  Executor
		opts  []Option
	}{
		{"nil store", nil, exec, nil},
		{"nil executor", store, nil, nil},
		{"zero concurrency", store, exec, []Option{WithMaxConcurrent(0)}},
		{"zero lease ttl", store, exec, []Option{WithLeaseTTL(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.store, tt.exec, tt.opts...); err == nil {
				t.Error("New() expected error")
			}
		})
	}

	s := newTestScheduler(t, store, exec)
	if s.InstanceID() == "" {
		t.Error("default instance id is empty")
	}
}

// spanExecutor records the span context each run is started with.
type spanExecutor struct {
	store *policystore.MemoryStore

	mu      sync.Mutex
	parents []trace.SpanContext
}

func (e *spanExecutor) Execute(ctx context.Context, p *retention.Policy, now time.Time) *engine.Result {
	e.mu.Lock()
	e.parents = append(e.parents, trace.SpanContextFromContext(ctx))
	e.mu.Unlock()
	_ = e.store.RecordSuccess(ctx, p.ID, 0, 0, 0, now)
	return &engine.Result{PolicyID: p.ID}
}

func TestTick_Tracing(t *testing.T) {
	store := policystore.NewMemoryStore()
	createPolicy(t, store, retention.EntityForm, nil)
	createPolicy(t, store, retention.EntityReport, nil)
	createPolicy(t, store, retention.EntityUser, func(p *retention.Policy) { p.ExecutionSchedule.Hour = 5 })

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	exec := &spanExecutor{store: store}
	s := newTestScheduler(t, store, exec, WithTracer(provider.Tracer("test")), WithInstanceID("node-a"))

	s.Tick(context.Background(), tickNow)

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != tracing.SpanRetentionTick {
		t.Fatalf("ended spans = %d, want one %s span", len(spans), tracing.SpanRetentionTick)
	}
	tick := spans[0]

	want := map[attribute.Key]int64{
		tracing.AttrEvaluated: 3,
		tracing.AttrEligible:  2,
		tracing.AttrSucceeded: 2,
	}
	got := make(map[attribute.Key]attribute.Value)
	for _, kv := range tick.Attributes() {
		got[kv.Key] = kv.Value
	}
	for k, v := range want {
		if got[k].AsInt64() != v {
			t.Errorf("%s = %d, want %d", k, got[k].AsInt64(), v)
		}
	}
	if got[tracing.AttrInstanceID].AsString() != "node-a" {
		t.Errorf("instance id = %q", got[tracing.AttrInstanceID].AsString())
	}

	if len(exec.parents) != 2 {
		t.Fatalf("executor ran %d times, want 2", len(exec.parents))
	}
	for _, sc := range exec.parents {
		if sc.SpanID() != tick.SpanContext().SpanID() {
			t.Errorf("run context span = %s, want tick span %s", sc.SpanID(), tick.SpanContext().SpanID())
		}
	}
}
