package mediator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/courier/result"
)

func TestShardedStorePutTryGet(t *testing.T) {
	s := NewShardedStore(4)
	ctx := context.Background()

	if _, ok := s.TryGet(ctx, "missing"); ok {
		t.Fatal("expected miss for absent key")
	}

	if err := s.Put(ctx, "k", result.Ok[any]("v"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	res, ok := s.TryGet(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if res.Value() != "v" {
		t.Errorf("Value = %v, want v", res.Value())
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestShardedStoreExpiry(t *testing.T) {
	s := NewShardedStore(4)
	ctx := context.Background()

	if err := s.Put(ctx, "k", result.Ok[any]("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(15 * time.Millisecond)

	if _, ok := s.TryGet(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after expiry", s.Len())
	}
}

func TestShardedStoreNonPositiveRetention(t *testing.T) {
	s := NewShardedStore(4)
	ctx := context.Background()

	if err := s.Put(ctx, "k", result.Ok[any]("v"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := s.TryGet(ctx, "k"); ok {
		t.Error("expected nothing stored for zero retention")
	}
}

func TestShardedStoreShardCountFallback(t *testing.T) {
	s := NewShardedStore(0)
	if len(s.shards) != 32 {
		t.Errorf("shards = %d, want 32 fallback", len(s.shards))
	}
}

func TestIdempotencyCacheHitShortCircuits(t *testing.T) {
	store := NewShardedStore(4)
	b := NewIdempotencyBehavior(store, time.Minute, nil)

	pc := &PipelineContext{MessageID: 42, QoS: QoSExactlyOnce}
	calls := 0
	next := func(context.Context) result.Result[any] {
		calls++
		return result.Ok[any]("fresh")
	}

	first := b.Handle(context.Background(), pc, &pingRequest{Envelope: Envelope{MessageID: 42}}, next)
	second := b.Handle(context.Background(), pc, &pingRequest{Envelope: Envelope{MessageID: 42}}, next)

	if calls != 1 {
		t.Errorf("downstream calls = %d, want 1", calls)
	}
	if first.Value() != second.Value() {
		t.Errorf("cached value = %v, want %v", second.Value(), first.Value())
	}
}

func TestIdempotencyAtMostOnceBypasses(t *testing.T) {
	store := NewShardedStore(4)
	b := NewIdempotencyBehavior(store, time.Minute, nil)

	pc := &PipelineContext{MessageID: 42, QoS: QoSAtMostOnce}
	calls := 0
	next := func(context.Context) result.Result[any] {
		calls++
		return result.Ok[any]("fresh")
	}

	b.Handle(context.Background(), pc, &pingRequest{Envelope: Envelope{MessageID: 42}}, next)
	b.Handle(context.Background(), pc, &pingRequest{Envelope: Envelope{MessageID: 42}}, next)

	if calls != 2 {
		t.Errorf("downstream calls = %d, want 2 (at-most-once bypasses dedup)", calls)
	}
}

func TestIdempotencyPrefersExplicitKey(t *testing.T) {
	store := NewShardedStore(4)
	b := NewIdempotencyBehavior(store, time.Minute, nil)

	calls := 0
	next := func(context.Context) result.Result[any] {
		calls++
		return result.Ok[any](calls)
	}

	// Different message ids, same explicit key: deduplicated.
	b.Handle(context.Background(), &PipelineContext{MessageID: 1, QoS: QoSExactlyOnce},
		&pingRequest{Envelope: Envelope{MessageID: 1, IdempotencyKey: "order-9"}}, next)
	b.Handle(context.Background(), &PipelineContext{MessageID: 2, QoS: QoSExactlyOnce},
		&pingRequest{Envelope: Envelope{MessageID: 2, IdempotencyKey: "order-9"}}, next)

	if calls != 1 {
		t.Errorf("downstream calls = %d, want 1 for shared idempotency key", calls)
	}
}

type brokenStore struct{}

func (brokenStore) TryGet(context.Context, string) (result.Result[any], bool) {
	return result.Result[any]{}, false
}

func (brokenStore) Put(context.Context, string, result.Result[any], time.Duration) error {
	return errors.New("store offline")
}

func TestIdempotencyStoreFailureDoesNotFailDispatch(t *testing.T) {
	b := NewIdempotencyBehavior(brokenStore{}, time.Minute, nil)

	pc := &PipelineContext{MessageID: 7, QoS: QoSAtLeastOnce}
	res := b.Handle(context.Background(), pc, &pingRequest{Envelope: Envelope{MessageID: 7}}, func(context.Context) result.Result[any] {
		return result.Ok[any]("ok")
	})

	if !res.IsSuccess() {
		t.Errorf("res = %v, want success despite store failure", res.Failure())
	}
}
