package mediator

import (
	"context"

	"github.com/jonwraymond/courier/observe"
	"github.com/jonwraymond/courier/result"
)

// compensationBehavior invokes the handler's compensating action on
// failure. Compensation is best effort: its errors are logged and
// never mask the original failure.
type compensationBehavior struct {
	logger observe.Logger
}

// NewCompensationBehavior creates the compensation behavior. It is a
// no-op for handlers that do not declare the Compensatable capability.
func NewCompensationBehavior(logger observe.Logger) Behavior {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &compensationBehavior{logger: logger}
}

func (b *compensationBehavior) Name() string { return "compensation" }

func (b *compensationBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	res := next(ctx)

	if res.IsSuccess() || pc.compensate == nil {
		return res
	}

	if err := pc.compensate(ctx, msg); err != nil {
		b.logger.Error(ctx, "compensation failed",
			observe.Field{Key: "msg.kind", Value: pc.Kind},
			observe.Field{Key: "msg.id", Value: pc.MessageID},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return res
}
