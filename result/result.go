package result

import "fmt"

// Code classifies a failure.
type Code string

const (
	CodeHandlerNotFound     Code = "handler_not_found"
	CodeValidationFailed    Code = "validation_failed"
	CodeTimeout             Code = "timeout"
	CodeCancelled           Code = "cancelled"
	CodeHandlerFailed       Code = "handler_failed"
	CodePersistenceFailed   Code = "persistence_failed"
	CodeTransportFailed     Code = "transport_failed"
	CodeSerializationFailed Code = "serialization_failed"
	CodeLockFailed          Code = "lock_failed"
	CodePipelineFailed      Code = "pipeline_failed"
	CodeInternal            Code = "internal_error"
	CodeCircuitOpen         Code = "circuit_open"
)

// ErrorInfo is the minimal description of a failure.
type ErrorInfo struct {
	Code    Code
	Message string
}

// Failure describes a failed outcome.
//
// Retryable is an explicit flag set by whoever produced the failure;
// it is never inferred from the code or the cause.
type Failure struct {
	ErrorInfo

	// Cause is the original error, retained for diagnostics. May be nil.
	Cause error

	// Retryable marks the failure as safe to retry.
	Retryable bool
}

// Error implements the error interface so a Failure can be logged or
// wrapped like any other error.
func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Unwrap exposes the original error to errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsRetryable returns a copy of the failure flagged retryable.
func (f *Failure) AsRetryable() *Failure {
	cp := *f
	cp.Retryable = true
	return &cp
}

// Result is the outcome of a dispatch: a value of T or a Failure.
//
// Invariants: a success has a nil failure; a failure carries the zero
// value of T. Metadata is nil until the first write.
type Result[T any] struct {
	value    T
	failure  *Failure
	metadata *Metadata
}

// Ok returns a successful result carrying value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// OkMeta returns a successful result carrying value and metadata.
// The metadata is referenced, not copied; callers hand over ownership.
func OkMeta[T any](value T, meta *Metadata) Result[T] {
	return Result[T]{value: value, metadata: meta}
}

// Fail returns a failed result with the given code and message.
func Fail[T any](code Code, message string) Result[T] {
	return Result[T]{failure: &Failure{ErrorInfo: ErrorInfo{Code: code, Message: message}}}
}

// FailErr returns a failed result retaining err as the cause.
func FailErr[T any](code Code, err error) Result[T] {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result[T]{failure: &Failure{ErrorInfo: ErrorInfo{Code: code, Message: msg}, Cause: err}}
}

// FailFrom converts an ErrorInfo into a failed result.
func FailFrom[T any](info ErrorInfo) Result[T] {
	return Result[T]{failure: &Failure{ErrorInfo: info}}
}

// FailWith returns a failed result carrying the given failure verbatim.
func FailWith[T any](f *Failure) Result[T] {
	if f == nil {
		return Fail[T](CodeInternal, "nil failure")
	}
	return Result[T]{failure: f}
}

// IsSuccess reports whether the result is a success.
func (r Result[T]) IsSuccess() bool {
	return r.failure == nil
}

// Value returns the carried value. Zero of T on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Failure returns the failure, or nil on success.
func (r Result[T]) Failure() *Failure {
	return r.failure
}

// Metadata returns the attached metadata, or nil if none was set.
func (r Result[T]) Metadata() *Metadata {
	return r.metadata
}

// WithMeta returns a copy of the result with key set in its metadata.
// The original result is not modified.
func (r Result[T]) WithMeta(key string, value any) Result[T] {
	meta := r.metadata.clone()
	meta.Set(key, value)
	r.metadata = meta
	return r
}

// As converts an untyped result to a typed one. Failures and metadata
// pass through untouched. A success whose value is not a T becomes an
// internal failure: that only happens when a handler was registered
// with a response type different from the one requested at the call
// site.
func As[T any](r Result[any]) Result[T] {
	if !r.IsSuccess() {
		return Result[T]{failure: r.failure, metadata: r.metadata}
	}
	if r.value == nil {
		var zero T
		return Result[T]{value: zero, metadata: r.metadata}
	}
	v, ok := r.value.(T)
	if !ok {
		return Result[T]{
			failure: &Failure{ErrorInfo: ErrorInfo{
				Code:    CodeInternal,
				Message: fmt.Sprintf("response type mismatch: %T", r.value),
			}},
			metadata: r.metadata,
		}
	}
	return Result[T]{value: v, metadata: r.metadata}
}

// Erase converts a typed result to an untyped one.
func Erase[T any](r Result[T]) Result[any] {
	if !r.IsSuccess() {
		return Result[any]{failure: r.failure, metadata: r.metadata}
	}
	return Result[any]{value: r.value, metadata: r.metadata}
}
