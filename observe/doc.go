// Package observe provides observability primitives for message
// dispatch.
//
// It is a pure instrumentation library: no dispatching, no transport,
// no I/O beyond exporter setup. The mediator wires the observer's
// logger, tracer, and metrics into its behavior pipeline.
package observe
