package mediator

import (
	"context"
	"encoding/json"
)

// QoS is the delivery guarantee requested for a message.
type QoS int

const (
	// QoSUnset means the mediator's configured default applies.
	QoSUnset QoS = iota
	// QoSAtMostOnce disables retry and deduplication.
	QoSAtMostOnce
	// QoSAtLeastOnce enables retry; duplicates are possible.
	QoSAtLeastOnce
	// QoSExactlyOnce enables retry and deduplication.
	QoSExactlyOnce
)

// String returns the string representation of the QoS level.
func (q QoS) String() string {
	switch q {
	case QoSAtMostOnce:
		return "at_most_once"
	case QoSAtLeastOnce:
		return "at_least_once"
	case QoSExactlyOnce:
		return "exactly_once"
	default:
		return "unset"
	}
}

// ParseQoS parses a QoS name. Unknown names map to QoSUnset.
func ParseQoS(s string) QoS {
	switch s {
	case "at_most_once":
		return QoSAtMostOnce
	case "at_least_once":
		return QoSAtLeastOnce
	case "exactly_once":
		return QoSExactlyOnce
	default:
		return QoSUnset
	}
}

// RequiresDelivery reports whether the level demands delivery
// guarantees (and therefore dead-lettering on exhausted retries).
func (q QoS) RequiresDelivery() bool {
	return q == QoSAtLeastOnce || q == QoSExactlyOnce
}

// Envelope is the message capability set. Embed it (by value) in every
// request and event struct; the mediator reaches it through the Env
// method, so messages must be passed to Send and Publish by pointer.
type Envelope struct {
	// MessageID is fixed at creation. A zero value is stamped by the
	// mediator on first dispatch; a non-zero value is never
	// overwritten.
	MessageID int64 `json:"message_id"`

	// CorrelationID links related messages. nil means unset: the
	// mediator generates one. Any explicit value, including zero and
	// negatives, passes through verbatim.
	CorrelationID *int64 `json:"correlation_id,omitempty"`

	// Delivery is the requested delivery guarantee. QoSUnset adopts
	// the mediator's DefaultQoS.
	Delivery QoS `json:"qos,omitempty"`

	// IdempotencyKey overrides the deduplication key. Empty means the
	// MessageID is used.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Env exposes the envelope for the mediator to read and stamp.
func (e *Envelope) Env() *Envelope { return e }

// Correlate sets an explicit correlation id.
func (e *Envelope) Correlate(id int64) {
	e.CorrelationID = &id
}

// Correlation returns the correlation id and whether one is set.
func (e *Envelope) Correlation() (int64, bool) {
	if e.CorrelationID == nil {
		return 0, false
	}
	return *e.CorrelationID, true
}

// Message is anything carrying an Envelope.
type Message interface {
	Env() *Envelope
}

// Request is a command or query dispatched to exactly one handler.
// Kind is the explicit registration key; declare it with a value
// receiver so it is callable on a zero value.
type Request interface {
	Message
	Kind() string
}

// Event is a message fanned out to zero or more subscribers.
type Event interface {
	Message
	Kind() string
}

// Validatable is an optional request capability: requests implementing
// it are checked by the validation behavior before reaching downstream.
type Validatable interface {
	Validate() error
}

// Compensatable is an optional handler capability: when the pipeline
// fails after the handler may have produced partial side effects, the
// compensating action is invoked, best effort, with the original
// message.
type Compensatable interface {
	Compensate(ctx context.Context, msg Message) error
}

// Serializer converts messages to and from bytes. Only the shape is
// owned here; backends are external collaborators.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

var _ Serializer = JSONSerializer{}
