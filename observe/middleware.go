package observe

import (
	"context"
	"time"
)

// OpFunc is a single instrumented cache operation.
type OpFunc func(ctx context.Context) error

// Middleware wraps cache operations with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped operation.
//   - Errors: errors from the operation are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Instrument runs op inside a span and records its duration and outcome.
// Failures are logged at warn level; successes at debug level.
func (m *Middleware) Instrument(ctx context.Context, meta OpMeta, op OpFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)

	start := time.Now()
	err := op(ctx)
	duration := time.Since(start)

	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, meta, duration, err)

	opLogger := m.logger.WithOp(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		opLogger.Warn(ctx, "cache operation failed", fields...)
	} else {
		opLogger.Debug(ctx, "cache operation completed", fields...)
	}

	return err
}

// Lookup records the hit/miss outcome of a read.
func (m *Middleware) Lookup(ctx context.Context, meta OpMeta, hit bool) {
	m.metrics.RecordLookup(ctx, meta, hit)
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
