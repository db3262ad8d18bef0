// Package tracing sets up OpenTelemetry tracing for the retention service.
//
// New builds a Tracer from telemetry.tracing: spans are exported over
// OTLP/gRPC and sampled by one of three strategies, always, never or ratio,
// each wrapped in ParentBased so a sampled API request keeps the run it
// triggers sampled. A disabled configuration yields noop spans.
//
// The engine, the scheduler and the admin API accept a trace.Tracer and
// name their spans and attributes with the constants in this package:
//
//	retention.tick                scheduler pass over the active policies
//	  retention.run               one policy execution or preview
//	    retention.archive         per collection archive write
//	    retention.delete          per collection delete batches
//
// Trace context crosses process boundaries as W3C traceparent headers,
// extracted from admin API requests and injected into NATS run events.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
package tracing
