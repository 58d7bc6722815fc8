package mediator

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/courier/result"
)

// PipelineContext carries per-call dispatch state. One is created per
// dispatch and discarded afterwards; it is never shared across
// concurrent dispatches. The behavior chain itself holds no per-call
// state.
type PipelineContext struct {
	// Kind is the message kind being dispatched.
	Kind string

	// MessageID is the stamped message id.
	MessageID int64

	// CorrelationID is the resolved correlation id.
	CorrelationID int64

	// HasCorrelation reports whether a correlation id was resolved.
	HasCorrelation bool

	// QoS is the effective delivery guarantee after defaulting.
	QoS QoS

	// Position is the chain index of the behavior currently running.
	Position int

	// Attempts is the number of handler attempts made so far. The
	// retry behavior maintains it; 0 means downstream has not run.
	Attempts int

	// RetriesExhausted is set by the retry behavior when it gives up
	// on a retryable failure.
	RetriesExhausted bool

	// Start is when the dispatch entered the pipeline.
	Start time.Time

	// compensate is the handler's compensating action, when declared.
	compensate func(ctx context.Context, msg Message) error

	// enteredHandler tracks whether a panic unwound out of the handler
	// rather than a behavior.
	enteredHandler bool
}

// Next invokes the downstream remainder of the chain.
type Next func(ctx context.Context) result.Result[any]

// Behavior is an around-invoke hook composed into the dispatch chain.
// A behavior may short-circuit by not calling next, rewrite the result
// after next returns, or pass through.
//
// Contract:
// - Concurrency: behaviors are shared across dispatches and must be
//   safe for concurrent use; per-call state belongs in PipelineContext.
// - Errors: failures are communicated exclusively via the returned
//   result; behaviors must not panic.
type Behavior interface {
	Name() string
	Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any]
}

// invoker is a fully composed chain or the terminal handler call.
type invoker func(ctx context.Context, pc *PipelineContext, msg Message) result.Result[any]

// buildChain composes behaviors around the handler, outermost first,
// into a single invoker. Built once per kind at registration and
// reused concurrently.
func buildChain(behaviors []Behavior, handler invoker) invoker {
	chain := handler
	for i := len(behaviors) - 1; i >= 0; i-- {
		b, inner, pos := behaviors[i], chain, i
		chain = func(ctx context.Context, pc *PipelineContext, msg Message) result.Result[any] {
			pc.Position = pos
			return b.Handle(ctx, pc, msg, func(ctx context.Context) result.Result[any] {
				return inner(ctx, pc, msg)
			})
		}
	}
	return chain
}

// failFromContext maps a context error to the matching failure code.
// Cancellation is distinct from failure and from timeout.
func failFromContext(err error) result.Result[any] {
	if errors.Is(err, context.DeadlineExceeded) {
		return result.FailErr[any](result.CodeTimeout, err)
	}
	return result.FailErr[any](result.CodeCancelled, err)
}
