package mediator

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/courier/observe"
	"github.com/jonwraymond/courier/result"
)

// OverflowPolicy selects what a full dead-letter queue does with a new
// letter.
type OverflowPolicy string

const (
	// OverflowRejectNew drops the incoming letter, preserving the
	// oldest evidence of failure for operators. This is the default.
	OverflowRejectNew OverflowPolicy = "reject_new"

	// OverflowEvictOldest drops the oldest letter to make room.
	OverflowEvictOldest OverflowPolicy = "evict_oldest"
)

// Letter is a dead-lettered message held for out-of-band inspection
// and replay.
type Letter struct {
	Kind          string
	MessageID     int64
	CorrelationID int64
	QoS           QoS
	Attempts      int
	Failure       result.ErrorInfo
	// Payload is a best-effort serialized snapshot of the message.
	Payload []byte
	At      time.Time
}

// MemoryDeadLetterQueue is a bounded in-memory DeadLetterSink.
type MemoryDeadLetterQueue struct {
	mu       sync.Mutex
	letters  []Letter
	capacity int
	policy   OverflowPolicy

	accepted int64
	rejected int64
	evicted  int64
}

// NewMemoryDeadLetterQueue creates a queue with the given capacity and
// overflow policy. Capacity below one falls back to 1000; an unknown
// policy falls back to OverflowRejectNew.
func NewMemoryDeadLetterQueue(capacity int, policy OverflowPolicy) *MemoryDeadLetterQueue {
	if capacity < 1 {
		capacity = 1000
	}
	if policy != OverflowEvictOldest {
		policy = OverflowRejectNew
	}
	return &MemoryDeadLetterQueue{capacity: capacity, policy: policy}
}

// Append adds a letter, applying the overflow policy when full.
func (q *MemoryDeadLetterQueue) Append(_ context.Context, letter Letter) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.letters) >= q.capacity {
		if q.policy == OverflowRejectNew {
			q.rejected++
			return false
		}
		q.letters = q.letters[1:]
		q.evicted++
	}

	q.letters = append(q.letters, letter)
	q.accepted++
	return true
}

// Len returns the number of queued letters.
func (q *MemoryDeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.letters)
}

// Drain removes and returns up to limit letters, oldest first.
// limit <= 0 drains everything.
func (q *MemoryDeadLetterQueue) Drain(limit int) []Letter {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.letters) {
		limit = len(q.letters)
	}

	out := make([]Letter, limit)
	copy(out, q.letters[:limit])
	q.letters = append(q.letters[:0], q.letters[limit:]...)
	return out
}

// Stats returns accepted/rejected/evicted counters.
func (q *MemoryDeadLetterQueue) Stats() (accepted, rejected, evicted int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.accepted, q.rejected, q.evicted
}

// Ensure MemoryDeadLetterQueue implements DeadLetterSink
var _ DeadLetterSink = (*MemoryDeadLetterQueue)(nil)

// deadLetterBehavior appends exhausted failures to the sink. It sits
// outside the retry behavior so it observes the final outcome.
type deadLetterBehavior struct {
	sink       DeadLetterSink
	serializer Serializer
	logger     observe.Logger
}

// NewDeadLetterBehavior creates the dead-letter behavior.
func NewDeadLetterBehavior(sink DeadLetterSink, serializer Serializer, logger observe.Logger) Behavior {
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &deadLetterBehavior{sink: sink, serializer: serializer, logger: logger}
}

func (b *deadLetterBehavior) Name() string { return "deadletter" }

func (b *deadLetterBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	res := next(ctx)

	if res.IsSuccess() || !pc.QoS.RequiresDelivery() || !pc.RetriesExhausted {
		return res
	}

	payload, err := b.serializer.Serialize(msg)
	if err != nil {
		payload = nil
	}

	letter := Letter{
		Kind:          pc.Kind,
		MessageID:     pc.MessageID,
		CorrelationID: pc.CorrelationID,
		QoS:           pc.QoS,
		Attempts:      pc.Attempts,
		Failure:       res.Failure().ErrorInfo,
		Payload:       payload,
		At:            time.Now(),
	}

	if !b.sink.Append(ctx, letter) {
		b.logger.Warn(ctx, "dead letter rejected by sink",
			observe.Field{Key: "msg.kind", Value: pc.Kind},
			observe.Field{Key: "msg.id", Value: pc.MessageID},
		)
	}

	// The caller still sees the original failure.
	return res
}
