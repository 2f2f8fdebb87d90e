package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records provider call and key-rotation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one adapter call with duration and error status.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordRotation records a key being put into cooldown.
	RecordRotation(ctx context.Context, keyID string)

	// RecordExhausted records a call that found every key cooling down.
	RecordExhausted(ctx context.Context, meta CallMeta)
}

type metricsImpl struct {
	totalCount     metric.Int64Counter
	errorCount     metric.Int64Counter
	durationHist   metric.Float64Histogram
	rotationCount  metric.Int64Counter
	exhaustedCount metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"provider.call.total",
		metric.WithDescription("Total number of provider calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"provider.call.errors",
		metric.WithDescription("Total number of failed provider calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"provider.call.duration_ms",
		metric.WithDescription("Provider call duration in milliseconds, including retries"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	rotationCount, err := meter.Int64Counter(
		"keypool.rotations",
		metric.WithDescription("Number of keys put into cooldown after a rate limit"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, err
	}

	exhaustedCount, err := meter.Int64Counter(
		"keypool.exhausted",
		metric.WithDescription("Number of calls rejected because every key was cooling down"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:     totalCount,
		errorCount:     errorCount,
		durationHist:   durationHist,
		rotationCount:  rotationCount,
		exhaustedCount: exhaustedCount,
	}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRotation(ctx context.Context, keyID string) {
	m.rotationCount.Add(ctx, 1, metric.WithAttributes(attribute.String("key.id", keyID)))
}

func (m *metricsImpl) RecordExhausted(ctx context.Context, meta CallMeta) {
	m.exhaustedCount.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

type noopMetrics struct{}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordCall(context.Context, CallMeta, time.Duration, error) {}
func (noopMetrics) RecordRotation(context.Context, string)                     {}
func (noopMetrics) RecordExhausted(context.Context, CallMeta)                  {}
