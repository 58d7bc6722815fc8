package mediator

import (
	"context"
	"time"

	"github.com/jonwraymond/courier/observe"
	"github.com/jonwraymond/courier/result"
)

// loggingBehavior logs dispatch start and outcome through the
// structured logger.
type loggingBehavior struct {
	logger observe.Logger
}

// NewLoggingBehavior creates the logging behavior.
func NewLoggingBehavior(logger observe.Logger) Behavior {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &loggingBehavior{logger: logger}
}

func (b *loggingBehavior) Name() string { return "logging" }

func (b *loggingBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	logger := b.logger.WithMessage(msgMeta(pc))
	logger.Debug(ctx, "dispatch started",
		observe.Field{Key: "qos", Value: pc.QoS.String()},
	)

	start := time.Now()
	res := next(ctx)
	duration := time.Since(start)

	fields := []observe.Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if f := res.Failure(); f != nil {
		fields = append(fields,
			observe.Field{Key: "error_code", Value: string(f.Code)},
			observe.Field{Key: "error", Value: f.Message},
		)
		logger.Error(ctx, "dispatch failed", fields...)
	} else {
		logger.Info(ctx, "dispatch completed", fields...)
	}

	return res
}

// msgMeta builds telemetry metadata from the pipeline context.
func msgMeta(pc *PipelineContext) observe.MsgMeta {
	return observe.MsgMeta{
		Kind:           pc.Kind,
		MessageID:      pc.MessageID,
		CorrelationID:  pc.CorrelationID,
		HasCorrelation: pc.HasCorrelation,
		QoS:            pc.QoS.String(),
	}
}
