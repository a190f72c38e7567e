package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "news-digest"

// tracer delegates to whatever provider is installed globally, including one
// installed after package init.
var tracer = otel.Tracer(instrumentationName)

// GetTracer returns the global tracer for creating spans.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "digest.fetch")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// InitProvider installs a parent-based ratio sampler provider and the W3C
// propagators. sampleRatio is clamped to [0, 1]. The returned function
// flushes and shuts the provider down.
func InitProvider(sampleRatio float64, opts ...sdktrace.TracerProviderOption) func(context.Context) error {
	if sampleRatio < 0 {
		sampleRatio = 0
	}
	if sampleRatio > 1 {
		sampleRatio = 1
	}
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	}, opts...)

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown
}
