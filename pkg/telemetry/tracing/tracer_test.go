package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"chryso-hq/forms/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:    "nil config",
			wantErr: true,
		},
		{
			name:   "disabled",
			config: &config.TracingConfig{ServiceName: "test-service"},
		},
		{
			name: "always sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
				Timeout:     time.Second,
			},
			wantEnabled: true,
		},
		{
			name: "ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.25,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
			},
			wantEnabled: true,
		},
		{
			name: "unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
			if tracer.Tracer() == nil {
				t.Error("Tracer() returned nil")
			}
		})
	}
}

func TestNew_DisabledSpansAreNotRecorded(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	defer span.End()

	if span.IsRecording() {
		t.Error("disabled tracer produced a recording span")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty for noop span", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewWithExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer := NewWithExporter(exporter)

	ctx, parent := tracer.Start(context.Background(), SpanRetentionTick)
	_, child := tracer.Start(ctx, SpanRetentionRun)
	child.SetAttributes(PolicyAttributes("org-1", "pol-1", "form")...)
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}

	run := spans[0]
	if run.Name != SpanRetentionRun {
		t.Fatalf("first ended span = %q, want %q", run.Name, SpanRetentionRun)
	}
	if run.Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("run span is not a child of the tick span")
	}

	attrs := map[string]string{}
	for _, kv := range run.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs[AttrOrganizationID] != "org-1" || attrs[AttrPolicyID] != "pol-1" || attrs[AttrEntityType] != "form" {
		t.Errorf("attributes = %v", attrs)
	}

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() without span = %q, want empty", got)
	}

	tracer := NewWithExporter(tracetest.NewInMemoryExporter())
	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	got := TraceID(ctx)
	if len(got) != 32 || got != span.SpanContext().TraceID().String() {
		t.Errorf("TraceID() = %q, want %s", got, span.SpanContext().TraceID())
	}
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   codes.Code
		wantEvents int
	}{
		{"ok", nil, codes.Ok, 0},
		{"error", errors.New("delete from forms: connection reset"), codes.Error, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tracer := NewWithExporter(exporter)

			_, span := tracer.Start(context.Background(), "op")
			SetStatus(span, tt.err)
			span.End()

			got := exporter.GetSpans()[0]
			if got.Status.Code != tt.wantCode {
				t.Errorf("status = %v, want %v", got.Status.Code, tt.wantCode)
			}
			if len(got.Events) != tt.wantEvents {
				t.Errorf("events = %d, want %d", len(got.Events), tt.wantEvents)
			}
		})
	}
}

func TestOrNoop(t *testing.T) {
	if OrNoop(nil) == nil {
		t.Fatal("OrNoop(nil) returned nil")
	}
	tracer := NewWithExporter(tracetest.NewInMemoryExporter()).Tracer()
	if OrNoop(tracer) != tracer {
		t.Error("OrNoop() replaced a non-nil tracer")
	}
}
