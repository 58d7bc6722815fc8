// Package snowflake generates 64-bit time-ordered unique identifiers.
//
// An id packs a millisecond timestamp delta from a custom epoch, a
// worker id, and a per-millisecond sequence counter into one int64
// (sign bit always zero). For a fixed worker id the generated ids are
// strictly increasing as long as the wall clock does not regress; ids
// are unique across a fleet when worker ids are distinct.
//
// The generator's hot path is a single compare-and-swap retry loop over
// one packed state word. It never blocks on contention, only on genuine
// clock-tick waits (sequence exhaustion within a millisecond, or a
// small backward clock step).
package snowflake
