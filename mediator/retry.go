package mediator

import (
	"context"
	"time"

	"github.com/jonwraymond/courier/result"
)

// retryBehavior re-runs downstream on explicitly retryable failures.
type retryBehavior struct {
	maxAttempts int
	delay       time.Duration
}

// NewRetryBehavior creates the retry behavior. maxAttempts counts the
// initial try; values below one fall back to 3.
func NewRetryBehavior(maxAttempts int, delay time.Duration) Behavior {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if delay < 0 {
		delay = 100 * time.Millisecond
	}
	return &retryBehavior{maxAttempts: maxAttempts, delay: delay}
}

func (b *retryBehavior) Name() string { return "retry" }

func (b *retryBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	var last result.Result[any]

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		// Cancellation aborts retrying immediately.
		if err := ctx.Err(); err != nil {
			return failFromContext(err)
		}

		pc.Attempts = attempt
		res := next(ctx)

		if res.IsSuccess() {
			return res
		}
		// Retryable is an explicit flag, never inferred from the
		// failure's type or code.
		if !res.Failure().Retryable {
			return res
		}

		last = res
		if attempt == b.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return failFromContext(ctx.Err())
		case <-time.After(b.delay):
		}
	}

	pc.RetriesExhausted = true
	return last
}
