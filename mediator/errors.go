package mediator

import "errors"

// Registration and configuration errors.
var (
	// ErrNilHandler is returned when a nil handler is registered.
	ErrNilHandler = errors.New("mediator: handler is nil")

	// ErrDuplicateHandler is returned when a second request handler is
	// registered for the same kind.
	ErrDuplicateHandler = errors.New("mediator: handler already registered for kind")

	// ErrEmptyKind is returned when a message declares an empty kind.
	ErrEmptyKind = errors.New("mediator: message kind is empty")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("mediator: invalid configuration")
)
