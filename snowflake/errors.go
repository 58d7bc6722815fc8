package snowflake

import "errors"

// Sentinel errors for id generation.
var (
	// ErrInvalidWorkerID is returned when the worker id does not fit
	// the layout's worker bit width.
	ErrInvalidWorkerID = errors.New("snowflake: worker id out of range")

	// ErrInvalidLayout is returned when the bit layout is malformed.
	ErrInvalidLayout = errors.New("snowflake: invalid bit layout")

	// ErrInvalidCount is returned when a batch size is not positive.
	ErrInvalidCount = errors.New("snowflake: count must be positive")

	// ErrClockMovedBack is returned when the clock regressed further
	// than the generator is willing to wait out.
	ErrClockMovedBack = errors.New("snowflake: clock moved backwards")

	// ErrEpochExhausted is returned when the timestamp delta no longer
	// fits the layout's timestamp bit width.
	ErrEpochExhausted = errors.New("snowflake: timestamp overflows layout")
)
