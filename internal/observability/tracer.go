package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new internal span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan creates a span for a call to a backing service
// (PostgreSQL, Redis).
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from context as a string
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span ID from context as a string
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

// Common attribute keys for catalog spans
var (
	AttrCacheKey      = attribute.Key("takesmart.cache.key")
	AttrCacheFamily   = attribute.Key("takesmart.cache.family")
	AttrCacheOutcome  = attribute.Key("takesmart.cache.outcome")
	AttrCachePrefix   = attribute.Key("takesmart.cache.prefix")
	AttrSearchKind    = attribute.Key("takesmart.search.kind")
	AttrSearchLimit   = attribute.Key("takesmart.search.limit")
	AttrSearchResults = attribute.Key("takesmart.search.results")
	AttrEntity        = attribute.Key("takesmart.entity")
	AttrEntityID      = attribute.Key("takesmart.entity.id")
	AttrRequestID     = attribute.Key("takesmart.request_id")
)
