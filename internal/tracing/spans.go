package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrStoreBackend    = "store.backend"
	AttrStoreOperation  = "store.operation"
	AttrConnectionCount = "registry.connections"
	AttrCurrent         = "registry.current"
	AttrFlushGeneration = "flush.generation"
	AttrRevision        = "store.revision"
	AttrErrorMessage    = "error.message"
)

// Span name prefixes.
const (
	SpanPrefixStore = "store."
	SpanPrefixFlush = "flush."
)

// Event names for span events.
const (
	EventErrorOccurred = "error.occurred"
	EventCoalesced     = "flush.coalesced"
)

// StartStoreSpan starts a span for a store operation such as "load" or "save".
// A nil tracer yields a no-op span.
func StartStoreSpan(ctx context.Context, tracer trace.Tracer, backend, op string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return tracer.Start(ctx, SpanPrefixStore+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrStoreBackend, backend),
			attribute.String(AttrStoreOperation, op),
		),
	)
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.AddEvent(EventErrorOccurred, trace.WithAttributes(
			attribute.String(AttrErrorMessage, err.Error()),
		))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
