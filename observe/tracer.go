package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta describes one provider call for telemetry purposes.
type CallMeta struct {
	ID        string // Correlation ID (assigned by Middleware when empty)
	Adapter   string // Call site, e.g. chat, vision, transcribe (required)
	Operation string // Provider operation, e.g. generate (optional)
	Model     string // Provider model (optional)
}

// Name returns adapter.operation, or just the adapter when no operation is set.
func (m CallMeta) Name() string {
	if m.Operation != "" {
		return m.Adapter + "." + m.Operation
	}
	return m.Adapter
}

// SpanName returns the deterministic span name for this call.
// Format: provider.call.<adapter>.<operation> or provider.call.<adapter>
func (m CallMeta) SpanName() string {
	return "provider.call." + m.Name()
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("call.name", m.Name()),
		attribute.String("call.adapter", m.Adapter),
	}
	if m.Model != "" {
		attrs = append(attrs, attribute.String("call.model", m.Model))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a provider call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NewNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("call.error", false))
	if meta.ID != "" {
		attrs = append(attrs, attribute.String("call.id", meta.ID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("call.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a tracer that records nothing.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
