package mediator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/courier/result"
)

func TestMemoryDeadLetterQueueRejectNew(t *testing.T) {
	q := NewMemoryDeadLetterQueue(2, OverflowRejectNew)
	ctx := context.Background()

	assert.True(t, q.Append(ctx, Letter{MessageID: 1}))
	assert.True(t, q.Append(ctx, Letter{MessageID: 2}))
	assert.False(t, q.Append(ctx, Letter{MessageID: 3}), "full queue rejects new letters")

	assert.Equal(t, 2, q.Len())
	letters := q.Drain(0)
	require.Len(t, letters, 2)
	assert.Equal(t, int64(1), letters[0].MessageID, "oldest evidence is preserved")

	accepted, rejected, evicted := q.Stats()
	assert.Equal(t, int64(2), accepted)
	assert.Equal(t, int64(1), rejected)
	assert.Equal(t, int64(0), evicted)
}

func TestMemoryDeadLetterQueueEvictOldest(t *testing.T) {
	q := NewMemoryDeadLetterQueue(2, OverflowEvictOldest)
	ctx := context.Background()

	assert.True(t, q.Append(ctx, Letter{MessageID: 1}))
	assert.True(t, q.Append(ctx, Letter{MessageID: 2}))
	assert.True(t, q.Append(ctx, Letter{MessageID: 3}), "evict-oldest accepts new letters")

	letters := q.Drain(0)
	require.Len(t, letters, 2)
	assert.Equal(t, int64(2), letters[0].MessageID)
	assert.Equal(t, int64(3), letters[1].MessageID)

	_, _, evicted := q.Stats()
	assert.Equal(t, int64(1), evicted)
}

func TestMemoryDeadLetterQueueDrainLimit(t *testing.T) {
	q := NewMemoryDeadLetterQueue(10, OverflowRejectNew)
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		q.Append(ctx, Letter{MessageID: i})
	}

	first := q.Drain(2)
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].MessageID)
	assert.Equal(t, 3, q.Len())

	rest := q.Drain(-1)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].MessageID)
	assert.Equal(t, 0, q.Len())
}

func TestDeadLetterBehaviorCapturesExhaustedFailures(t *testing.T) {
	q := NewMemoryDeadLetterQueue(10, OverflowRejectNew)
	b := NewDeadLetterBehavior(q, nil, nil)

	pc := &PipelineContext{
		Kind:          "test.ping",
		MessageID:     42,
		CorrelationID: 7,
		QoS:           QoSAtLeastOnce,
		Attempts:      3,

		RetriesExhausted: true,
	}
	res := b.Handle(context.Background(), pc, &pingRequest{Value: "x"}, func(context.Context) result.Result[any] {
		return result.Fail[any](result.CodeTransportFailed, "down")
	})

	require.NotNil(t, res.Failure(), "the original failure still reaches the caller")
	require.Equal(t, 1, q.Len())

	letter := q.Drain(1)[0]
	assert.Equal(t, "test.ping", letter.Kind)
	assert.Equal(t, int64(42), letter.MessageID)
	assert.Equal(t, int64(7), letter.CorrelationID)
	assert.Equal(t, 3, letter.Attempts)
	assert.Equal(t, result.CodeTransportFailed, letter.Failure.Code)
	assert.NotEmpty(t, letter.Payload, "payload snapshot is serialized")
	assert.WithinDuration(t, time.Now(), letter.At, time.Minute)
}

func TestDeadLetterBehaviorSkipsSuccess(t *testing.T) {
	q := NewMemoryDeadLetterQueue(10, OverflowRejectNew)
	b := NewDeadLetterBehavior(q, nil, nil)

	pc := &PipelineContext{QoS: QoSAtLeastOnce, RetriesExhausted: true}
	b.Handle(context.Background(), pc, &pingRequest{}, func(context.Context) result.Result[any] {
		return result.Ok[any]("fine")
	})

	assert.Equal(t, 0, q.Len())
}

func TestDeadLetterBehaviorSkipsAtMostOnce(t *testing.T) {
	q := NewMemoryDeadLetterQueue(10, OverflowRejectNew)
	b := NewDeadLetterBehavior(q, nil, nil)

	pc := &PipelineContext{QoS: QoSAtMostOnce, RetriesExhausted: true}
	b.Handle(context.Background(), pc, &pingRequest{}, func(context.Context) result.Result[any] {
		return result.Fail[any](result.CodeHandlerFailed, "down")
	})

	assert.Equal(t, 0, q.Len(), "at-most-once makes no delivery promise")
}

func TestDeadLetterBehaviorSkipsNonExhaustedFailures(t *testing.T) {
	q := NewMemoryDeadLetterQueue(10, OverflowRejectNew)
	b := NewDeadLetterBehavior(q, nil, nil)

	pc := &PipelineContext{QoS: QoSAtLeastOnce}
	b.Handle(context.Background(), pc, &pingRequest{}, func(context.Context) result.Result[any] {
		return result.Fail[any](result.CodeValidationFailed, "bad input")
	})

	assert.Equal(t, 0, q.Len(), "only exhausted retryable failures are dead-lettered")
}
