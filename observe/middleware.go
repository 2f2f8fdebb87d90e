package observe

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CallFunc is the unit of work Middleware wraps.
type CallFunc func(ctx context.Context) error

// Middleware wraps provider calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is propagated to fn.
//   - Errors: errors from fn are recorded and returned unchanged.
//   - A nil *Middleware runs fn without instrumentation.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics {
	if m == nil {
		return NoopMetrics()
	}
	return m.metrics
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	if m == nil {
		return NopLogger()
	}
	return m.logger
}

// Observe runs fn inside a span, then records metrics and a log line.
// A correlation ID is assigned when meta.ID is empty.
func (m *Middleware) Observe(ctx context.Context, meta CallMeta, fn CallFunc) error {
	if m == nil {
		return fn(ctx)
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordCall(ctx, meta, duration, err)

	callLogger := m.logger.WithCall(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		callLogger.Error(ctx, "provider call failed", fields...)
	} else {
		callLogger.Info(ctx, "provider call completed", fields...)
	}

	return err
}
