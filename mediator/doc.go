// Package mediator routes typed commands, queries, and events to
// registered handlers through an ordered chain of cross-cutting
// behaviors.
//
// Requests and events are plain structs embedding Envelope and
// declaring a Kind; handlers are registered once per kind with a
// generic, reflection-free API. Each registered kind gets a behavior
// chain (logging, tracing, validation, idempotency, circuit breaking,
// dead-lettering, retry, compensation) composed once and shared
// read-only across concurrent dispatches; all per-call state lives in a
// PipelineContext created per dispatch.
//
// Failures travel as result.Result values. Raw panics are caught only
// at the outermost dispatch boundary and normalized to failure
// results; inner behaviors never see them.
//
// # Usage
//
//	m, err := mediator.New(mediator.DefaultConfig())
//	if err != nil { ... }
//
//	err = mediator.RegisterHandler[CreateOrder, Receipt](m, orderHandler{})
//	res := mediator.Send[Receipt](ctx, m, &CreateOrder{Amount: 10})
//	if res.IsSuccess() { ... }
//
// # Behavior ordering
//
// The config-driven chain composes, outermost first: logging, tracing,
// validation, idempotency, circuit breaker, dead-letter, retry,
// compensation. Dead-letter sits outside retry so it observes the
// final, retry-exhausted failure. The ordering is an explicit
// contract: WithBehaviors replaces the chain wholesale for custom
// orders.
package mediator
