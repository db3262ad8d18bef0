package policyfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/policystore"
)

const validDoc = `
policies:
  - organization_id: acme
    name: Expire closed forms
    entity_type: form
    retention_period: {value: 1, unit: years}
    archive_before_delete: true
    archive_location: /var/lib/chryso/archive/acme
    archive_format: compressed
    conditions:
      - {field: status, operator: equals, value: closed}
    legal_hold:
      enabled: true
      reason: audit 2024
      hold_until: 2024-06-30T00:00:00Z
    execution_schedule: {frequency: weekly, day_of_week: 0, hour: 3}
  - organization_id: acme
    entity_type: auditLog
    retention_period: {value: 90, unit: days}
    is_active: false
`

func TestParse(t *testing.T) {
	policies, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(policies))
	}

	forms := policies[0]
	if !forms.IsActive {
		t.Error("is_active should default to true")
	}
	if forms.RetentionPeriod != (retention.RetentionPeriod{Value: 1, Unit: retention.UnitYears}) {
		t.Errorf("retention period = %+v", forms.RetentionPeriod)
	}
	if forms.ArchiveFormat != retention.FormatCompressed {
		t.Errorf("archive format = %q", forms.ArchiveFormat)
	}
	if len(forms.Conditions) != 1 || forms.Conditions[0].Value != "closed" {
		t.Errorf("conditions = %+v", forms.Conditions)
	}
	if forms.LegalHold.HoldUntil == nil || !forms.LegalHold.HoldUntil.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("hold until = %v", forms.LegalHold.HoldUntil)
	}
	if forms.ExecutionSchedule.Frequency != retention.FrequencyWeekly || forms.ExecutionSchedule.Hour != 3 {
		t.Errorf("schedule = %+v", forms.ExecutionSchedule)
	}

	audit := policies[1]
	if audit.IsActive {
		t.Error("explicit is_active: false was ignored")
	}
	if audit.ArchiveFormat != retention.FormatJSON || audit.ExecutionSchedule.Frequency != retention.FrequencyDaily {
		t.Errorf("defaults not applied: %+v", audit)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{
			name:      "malformed yaml",
			doc:       "policies: [",
			wantField: "",
		},
		{
			name: "invalid unit",
			doc: `
policies:
  - organization_id: acme
    entity_type: form
    retention_period: {value: 1, unit: weeks}
`,
			wantField: "policies[0].retentionPeriod.unit",
		},
		{
			name: "second policy invalid hour",
			doc: `
policies:
  - organization_id: acme
    entity_type: form
    retention_period: {value: 1, unit: years}
  - organization_id: acme
    entity_type: report
    retention_period: {value: 1, unit: years}
    execution_schedule: {hour: 24}
`,
			wantField: "policies[1].executionSchedule.hour",
		},
		{
			name: "duplicate active policy",
			doc: `
policies:
  - organization_id: acme
    entity_type: form
    retention_period: {value: 1, unit: years}
  - organization_id: acme
    entity_type: form
    retention_period: {value: 2, unit: years}
`,
			wantField: "policies[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if tt.wantField == "" {
				return
			}
			var ve *retention.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range ve.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want field %s", ve.Errors, tt.wantField)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	policies, err := Parse(nil)
	if err != nil || len(policies) != 0 {
		t.Errorf("Parse(nil) = %v, %v", policies, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10-acme.yaml"), validDoc)
	writeFile(t, filepath.Join(dir, "20-globex.yml"), `
policies:
  - organization_id: globex
    entity_type: all
    retention_period: {value: 7, unit: years}
`)
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, ".hidden.yaml"), "policies: [")

	policies, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(policies) != 3 {
		t.Fatalf("got %d policies, want 3", len(policies))
	}
	if policies[2].OrganizationID != "globex" {
		t.Errorf("files not loaded in lexical order: %s", policies[2].OrganizationID)
	}
}

func TestLoad_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), validDoc)
	writeFile(t, filepath.Join(dir, "b.yaml"), `
policies:
  - organization_id: acme
    entity_type: form
    retention_period: {value: 3, unit: months}
`)

	_, err := Load(dir)
	var fe *FileError
	if !errors.As(err, &fe) || !strings.HasSuffix(fe.Path, "b.yaml") {
		t.Fatalf("Load() error = %v, want FileError for b.yaml", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
}

func TestApply_UpsertPreservesStats(t *testing.T) {
	ctx := context.Background()
	store := policystore.NewMemoryStore()

	policies, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatal(err)
	}
	report, err := Apply(ctx, store, policies, "policy-file")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(report.Created) != 2 || len(report.Updated) != 0 {
		t.Fatalf("report = %+v", report)
	}
	formsID := report.Created[0]

	ran := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	if err := store.RecordSuccess(ctx, formsID, 4, 4, 100, ran); err != nil {
		t.Fatal(err)
	}

	// Reapply with a changed period.
	changed := strings.Replace(validDoc, "{value: 1, unit: years}", "{value: 2, unit: years}", 1)
	policies, err = Parse([]byte(changed))
	if err != nil {
		t.Fatal(err)
	}
	report, err = Apply(ctx, store, policies, "policy-file")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(report.Created) != 0 || len(report.Updated) != 2 {
		t.Fatalf("second apply report = %+v", report)
	}

	got, err := store.Get(ctx, formsID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RetentionPeriod.Value != 2 {
		t.Errorf("retention period not updated: %+v", got.RetentionPeriod)
	}
	if got.Stats.RecordsDeleted != 4 || got.Stats.LastExecuted == nil {
		t.Errorf("stats overwritten: %+v", got.Stats)
	}
	if got.CreatedBy != "policy-file" {
		t.Errorf("createdBy = %q", got.CreatedBy)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	writeFile(t, path, validDoc)

	w, err := NewWatcher(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	var reloads atomic.Int32
	reloaded := make(chan struct{}, 10)
	onReload := func(ctx context.Context) error {
		reloads.Add(1)
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx, onReload) }()

	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), validDoc)
	select {
	case <-reloaded:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}

	// A burst of writes collapses into one reload.
	for i := 0; i < 5; i++ {
		writeFile(t, path, validDoc)
	}
	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("reload not called after file modification")
	}
	time.Sleep(150 * time.Millisecond)
	if n := reloads.Load(); n != 1 {
		t.Errorf("reloads = %d, want 1", n)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("first Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}

	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback ran after Stop: calls = %d", n)
	}
}
