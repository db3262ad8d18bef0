package tracing

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		traceparent string
		wantTraceID string
	}{
		{
			name:        "valid traceparent",
			traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantTraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
		{name: "missing traceparent"},
		{name: "malformed traceparent", traceparent: "invalid"},
		{
			name:        "all zero trace id",
			traceparent: "00-00000000000000000000000000000000-00f067aa0ba902b7-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.traceparent != "" {
				headers.Set("traceparent", tt.traceparent)
			}

			ctx := Extract(context.Background(), headers)
			sc := trace.SpanContextFromContext(ctx)

			if tt.wantTraceID == "" {
				if sc.IsValid() {
					t.Errorf("extracted span context %v, want none", sc)
				}
				return
			}
			if !sc.IsRemote() || sc.TraceID().String() != tt.wantTraceID {
				t.Errorf("extracted trace %s (remote %v), want %s", sc.TraceID(), sc.IsRemote(), tt.wantTraceID)
			}
		})
	}
}

func TestInjectRoundTrip(t *testing.T) {
	tracer := NewWithExporter(tracetest.NewInMemoryExporter())
	ctx, span := tracer.Start(context.Background(), "publish")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("Inject() wrote no traceparent")
	}

	got := trace.SpanContextFromContext(Extract(context.Background(), headers))
	if got.TraceID() != span.SpanContext().TraceID() || got.SpanID() != span.SpanContext().SpanID() {
		t.Errorf("round trip = %s/%s, want %s/%s",
			got.TraceID(), got.SpanID(), span.SpanContext().TraceID(), span.SpanContext().SpanID())
	}
}

func TestInject_NoSpan(t *testing.T) {
	headers := http.Header{}
	Inject(context.Background(), headers)
	if v := headers.Get("traceparent"); v != "" {
		t.Errorf("traceparent = %q without a span", v)
	}
}
