package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records dispatch metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordDispatch records one message dispatch with duration and
	// failure classification. code is empty on success.
	RecordDispatch(ctx context.Context, meta MsgMeta, duration time.Duration, code string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"msg.dispatch.total",
		metric.WithDescription("Total number of message dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"msg.dispatch.errors",
		metric.WithDescription("Total number of failed dispatches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"msg.dispatch.duration_ms",
		metric.WithDescription("Message dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

// RecordDispatch records metrics for one dispatch.
func (m *metricsImpl) RecordDispatch(ctx context.Context, meta MsgMeta, duration time.Duration, code string) {
	attrs := []attribute.KeyValue{
		attribute.String("msg.kind", meta.Kind),
	}
	if meta.QoS != "" {
		attrs = append(attrs, attribute.String("msg.qos", meta.QoS))
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)

	if code != "" {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.String("msg.error_code", code))...,
		))
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// nopMetrics is a metrics implementation that does nothing.
type nopMetrics struct{}

func (m *nopMetrics) RecordDispatch(ctx context.Context, meta MsgMeta, duration time.Duration, code string) {
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return &nopMetrics{}
}
