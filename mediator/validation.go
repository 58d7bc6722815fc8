package mediator

import (
	"context"

	"github.com/jonwraymond/courier/result"
)

// validationBehavior checks requests that declare the Validatable
// capability and short-circuits downstream on violation.
type validationBehavior struct{}

// NewValidationBehavior creates the validation behavior.
func NewValidationBehavior() Behavior {
	return validationBehavior{}
}

func (validationBehavior) Name() string { return "validation" }

func (validationBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	if v, ok := msg.(Validatable); ok {
		if err := v.Validate(); err != nil {
			// Validation failures are terminal, never retryable.
			return result.FailErr[any](result.CodeValidationFailed, err)
		}
	}
	return next(ctx)
}
