package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// MsgMeta carries message metadata for telemetry purposes.
type MsgMeta struct {
	Kind           string // Registered message kind (required)
	MessageID      int64  // Assigned message id (0 when not yet stamped)
	CorrelationID  int64  // Resolved correlation id
	HasCorrelation bool   // Whether a correlation id was resolved
	QoS            string // Delivery guarantee label (optional)
}

// SpanName returns the deterministic span name for this message.
// Format: msg.dispatch.<kind>
func (m MsgMeta) SpanName() string {
	return "msg.dispatch." + m.Kind
}

// Tracer wraps OpenTelemetry tracing with dispatch-specific span
// management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a message dispatch.
	StartSpan(ctx context.Context, meta MsgMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with message metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta MsgMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("msg.kind", meta.Kind),
	}
	if meta.MessageID != 0 {
		attrs = append(attrs, attribute.String("msg.id", strconv.FormatInt(meta.MessageID, 10)))
	}
	if meta.HasCorrelation {
		attrs = append(attrs, attribute.String("msg.correlation_id", strconv.FormatInt(meta.CorrelationID, 10)))
	}
	if meta.QoS != "" {
		attrs = append(attrs, attribute.String("msg.qos", meta.QoS))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("msg.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// nopTracer is a tracer that does nothing.
type nopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &nopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *nopTracer) StartSpan(ctx context.Context, meta MsgMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *nopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
