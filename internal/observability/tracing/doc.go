// Package tracing provides OpenTelemetry tracing integration.
//
// InitProvider installs an SDK tracer provider so spans carry real trace IDs
// (surfaced to clients as X-Trace-Id). Pipeline stages and HTTP requests are
// traced through GetTracer.
package tracing
