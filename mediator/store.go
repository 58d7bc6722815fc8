package mediator

import (
	"context"
	"time"

	"github.com/jonwraymond/courier/result"
)

// IdempotencyStore caches dispatch results by deduplication key.
// Backends are external collaborators; only the contract is owned
// here. A memory implementation lives in this package.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - TryGet must not return expired entries.
type IdempotencyStore interface {
	// TryGet returns the cached result for key, if one is live.
	TryGet(ctx context.Context, key string) (result.Result[any], bool)

	// Put stores the result under key for the retention period.
	Put(ctx context.Context, key string, res result.Result[any], retention time.Duration) error
}

// DeadLetterSink receives messages that exhausted their retries.
// Append reports whether the letter was accepted; rejection must not
// affect the dispatch outcome.
type DeadLetterSink interface {
	Append(ctx context.Context, letter Letter) bool
}
