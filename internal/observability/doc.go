// Package observability groups logging, Prometheus metrics and OpenTelemetry
// tracing for the digest API and worker.
//
// Subpackages:
//   - logging: slog setup and context propagation
//   - metrics: Prometheus collectors and recorders for digest runs
//   - tracing: tracer provider setup, pipeline spans, HTTP middleware
package observability
