package mediator

import (
	"fmt"
	"time"
)

// Config holds the recognized dispatch options. Construct one from a
// preset and adjust fields, or load one from a file with LoadConfig.
type Config struct {
	// WorkerID seeds the mediator's snowflake id generator.
	WorkerID int64

	// EnableLogging turns the logging behavior on.
	EnableLogging bool

	// EnableTracing turns the tracing behavior on.
	EnableTracing bool

	// EnableRetry turns the retry behavior on.
	EnableRetry bool

	// EnableValidation turns the validation behavior on.
	EnableValidation bool

	// EnableIdempotency turns request deduplication on.
	EnableIdempotency bool

	// EnableDeadLetterQueue turns dead-lettering of exhausted
	// failures on.
	EnableDeadLetterQueue bool

	// MaxRetryAttempts is the total number of handler attempts,
	// including the first. Default: 3
	MaxRetryAttempts int

	// RetryDelay is the wait between attempts. Default: 100ms
	RetryDelay time.Duration

	// IdempotencyRetention is how long cached results live.
	// Default: 24h
	IdempotencyRetention time.Duration

	// IdempotencyShardCount is the number of store shards.
	// Default: 32
	IdempotencyShardCount int

	// DeadLetterQueueMaxSize bounds the in-memory dead-letter queue.
	// Default: 1000
	DeadLetterQueueMaxSize int

	// DeadLetterOverflow selects what happens when the queue is full.
	// Default: OverflowRejectNew
	DeadLetterOverflow OverflowPolicy

	// DefaultQoS applies to messages that leave QoS unset.
	// Default: QoSAtLeastOnce
	DefaultQoS QoS

	// Timeout bounds each dispatch. Zero disables the deadline.
	// Default: 30s
	Timeout time.Duration

	// CircuitBreakerThreshold is the rolling failure count that opens
	// the circuit. Zero leaves the breaker disabled.
	CircuitBreakerThreshold int

	// CircuitBreakerDuration is both the rolling window and how long
	// an open circuit rejects before probing.
	CircuitBreakerDuration time.Duration

	// MaxEventHandlerConcurrency caps concurrent event handlers per
	// Publish. Zero means unbounded.
	MaxEventHandlerConcurrency int
}

// DefaultConfig returns the standard configuration: every optional
// behavior on, breaker off.
func DefaultConfig() Config {
	return Config{
		EnableLogging:          true,
		EnableTracing:          true,
		EnableRetry:            true,
		EnableValidation:       true,
		EnableIdempotency:      true,
		EnableDeadLetterQueue:  true,
		MaxRetryAttempts:       3,
		RetryDelay:             100 * time.Millisecond,
		IdempotencyRetention:   24 * time.Hour,
		IdempotencyShardCount:  32,
		DeadLetterQueueMaxSize: 1000,
		DeadLetterOverflow:     OverflowRejectNew,
		DefaultQoS:             QoSAtLeastOnce,
		Timeout:                30 * time.Second,
	}
}

// MinimalConfig disables all optional behaviors. Handlers still run
// exactly once per Send.
func MinimalConfig() Config {
	cfg := DefaultConfig()
	cfg.EnableLogging = false
	cfg.EnableTracing = false
	cfg.EnableRetry = false
	cfg.EnableValidation = false
	cfg.EnableIdempotency = false
	cfg.EnableDeadLetterQueue = false
	return cfg
}

// DevelopmentConfig keeps logging and tracing, drops deduplication.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.EnableIdempotency = false
	return cfg
}

// HighPerformanceConfig widens the idempotency store to 64 shards.
func HighPerformanceConfig() Config {
	cfg := DefaultConfig()
	cfg.IdempotencyShardCount = 64
	return cfg
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.WorkerID < 0 {
		return fmt.Errorf("%w: worker id %d", ErrInvalidConfig, c.WorkerID)
	}
	if c.EnableRetry && c.MaxRetryAttempts < 1 {
		return fmt.Errorf("%w: max retry attempts %d", ErrInvalidConfig, c.MaxRetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay %v", ErrInvalidConfig, c.RetryDelay)
	}
	if c.EnableIdempotency {
		if c.IdempotencyShardCount < 1 {
			return fmt.Errorf("%w: shard count %d", ErrInvalidConfig, c.IdempotencyShardCount)
		}
		if c.IdempotencyRetention <= 0 {
			return fmt.Errorf("%w: idempotency retention %v", ErrInvalidConfig, c.IdempotencyRetention)
		}
	}
	if c.EnableDeadLetterQueue {
		if c.DeadLetterQueueMaxSize < 1 {
			return fmt.Errorf("%w: dead letter queue size %d", ErrInvalidConfig, c.DeadLetterQueueMaxSize)
		}
		switch c.DeadLetterOverflow {
		case OverflowRejectNew, OverflowEvictOldest:
		default:
			return fmt.Errorf("%w: overflow policy %q", ErrInvalidConfig, c.DeadLetterOverflow)
		}
	}
	if c.CircuitBreakerThreshold < 0 {
		return fmt.Errorf("%w: circuit breaker threshold %d", ErrInvalidConfig, c.CircuitBreakerThreshold)
	}
	if c.CircuitBreakerThreshold > 0 && c.CircuitBreakerDuration <= 0 {
		return fmt.Errorf("%w: circuit breaker duration %v", ErrInvalidConfig, c.CircuitBreakerDuration)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout %v", ErrInvalidConfig, c.Timeout)
	}
	if c.MaxEventHandlerConcurrency < 0 {
		return fmt.Errorf("%w: event handler concurrency %d", ErrInvalidConfig, c.MaxEventHandlerConcurrency)
	}
	switch c.DefaultQoS {
	case QoSAtMostOnce, QoSAtLeastOnce, QoSExactlyOnce:
	default:
		return fmt.Errorf("%w: default QoS %q", ErrInvalidConfig, c.DefaultQoS)
	}
	return nil
}
