package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta describes a single cache operation for telemetry purposes.
type OpMeta struct {
	Cache   string // Cache instance name (optional, defaults to Backend)
	Backend string // Backend kind: memory, filesystem, remote (required)
	Op      string // Operation: get, set, delete, clear (required)
	Async   bool   // Issued through the non-blocking surface
}

// SpanName returns the deterministic span name for this operation.
// Format: cache.<backend>.<op>
func (m OpMeta) SpanName() string {
	return "cache." + m.Backend + "." + m.Op
}

// CacheName returns the cache instance name, falling back to the backend kind.
func (m OpMeta) CacheName() string {
	if m.Cache != "" {
		return m.Cache
	}
	return m.Backend
}

// Validate reports whether the metadata carries the required fields.
func (m OpMeta) Validate() error {
	if m.Backend == "" {
		return ErrMissingBackend
	}
	if m.Op == "" {
		return ErrMissingOp
	}
	return nil
}

func (m OpMeta) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cache.name", m.CacheName()),
		attribute.String("cache.backend", m.Backend),
		attribute.String("cache.op", m.Op),
		attribute.Bool("cache.async", m.Async),
	}
}

// Tracer wraps OpenTelemetry tracing with cache-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a cache operation.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("cache.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
