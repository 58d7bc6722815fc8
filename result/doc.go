// Package result provides the outcome value model shared by every
// dispatch component.
//
// A Result[T] is either a success carrying a value of T or a failure
// carrying a Failure (code, message, optional cause, retryable flag).
// Failures travel as values through the behavior pipeline; raw errors
// and panics are normalized into failures only at the outermost
// dispatch boundary.
package result
