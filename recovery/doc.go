// Package recovery orchestrates fault recovery of stateful components.
//
// A Manager holds non-owning references to registered components and
// recovers them one by one, counting successes and failures
// independently. Recovery is single-flight: a call while another
// recovery is running is rejected immediately with AlreadyRecovering,
// guarded by one atomic flag rather than a blocking lock, so the
// reject-if-busy decision itself never blocks.
package recovery
