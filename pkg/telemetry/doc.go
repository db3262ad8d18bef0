// Package telemetry groups the observability packages of the retention
// service.
//
//   - logging: slog setup, context fields and PII redaction
//   - metrics: Prometheus collectors for runs, ticks and the admin API
//   - tracing: OpenTelemetry spans around runs, ticks and requests
//   - health: liveness and readiness endpoints
//
// Run results are reported to metrics through the engine and scheduler
// observer hooks, so neither depends on Prometheus directly.
package telemetry
