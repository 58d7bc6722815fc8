package mediator

import (
	"context"
	"strconv"
	"time"

	"github.com/jonwraymond/courier/observe"
	"github.com/jonwraymond/courier/result"
)

// idempotencyBehavior deduplicates dispatches by message id or
// explicit idempotency key. A live cache hit short-circuits downstream
// and returns the cached result unchanged. AtMostOnce messages bypass
// the behavior entirely.
type idempotencyBehavior struct {
	store     IdempotencyStore
	retention time.Duration
	logger    observe.Logger
}

// NewIdempotencyBehavior creates the deduplication behavior.
func NewIdempotencyBehavior(store IdempotencyStore, retention time.Duration, logger observe.Logger) Behavior {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &idempotencyBehavior{store: store, retention: retention, logger: logger}
}

func (b *idempotencyBehavior) Name() string { return "idempotency" }

func (b *idempotencyBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	if pc.QoS == QoSAtMostOnce {
		return next(ctx)
	}

	key := msg.Env().IdempotencyKey
	if key == "" {
		key = strconv.FormatInt(pc.MessageID, 10)
	}

	if cached, ok := b.store.TryGet(ctx, key); ok {
		return cached
	}

	res := next(ctx)

	if err := b.store.Put(ctx, key, res, b.retention); err != nil {
		// A store outage must not fail the dispatch.
		b.logger.Warn(ctx, "idempotency store put failed",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return res
}
