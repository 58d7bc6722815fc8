package mediator

import (
	"context"

	"github.com/jonwraymond/courier/observe"
	"github.com/jonwraymond/courier/result"
)

// tracingBehavior opens a span per dispatch and records the outcome.
type tracingBehavior struct {
	tracer observe.Tracer
}

// NewTracingBehavior creates the tracing behavior.
func NewTracingBehavior(tracer observe.Tracer) Behavior {
	if tracer == nil {
		tracer = observe.NopTracer()
	}
	return &tracingBehavior{tracer: tracer}
}

func (b *tracingBehavior) Name() string { return "tracing" }

func (b *tracingBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	ctx, span := b.tracer.StartSpan(ctx, msgMeta(pc))

	res := next(ctx)

	var err error
	if f := res.Failure(); f != nil {
		err = f
	}
	b.tracer.EndSpan(span, err)

	return res
}
