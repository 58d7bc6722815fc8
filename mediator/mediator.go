package mediator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/courier/observe"
	"github.com/jonwraymond/courier/result"
	"github.com/jonwraymond/courier/snowflake"
)

// IDGenerator produces the ids stamped onto messages and correlations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ids must be positive and unique within the process fleet.
type IDGenerator interface {
	NextID() (int64, error)
}

// Handler processes one request kind.
type Handler[TReq any, TRes any] interface {
	Handle(ctx context.Context, req *TReq) result.Result[TRes]
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[TReq any, TRes any] func(ctx context.Context, req *TReq) result.Result[TRes]

func (f HandlerFunc[TReq, TRes]) Handle(ctx context.Context, req *TReq) result.Result[TRes] {
	return f(ctx, req)
}

// EventHandler processes one event kind. Unlike request handlers,
// event handlers return a plain error; events have no response value.
type EventHandler[TEvt any] interface {
	Handle(ctx context.Context, evt *TEvt) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc[TEvt any] func(ctx context.Context, evt *TEvt) error

func (f EventHandlerFunc[TEvt]) Handle(ctx context.Context, evt *TEvt) error {
	return f(ctx, evt)
}

// handlerEntry is the per-kind dispatch state built at registration.
type handlerEntry struct {
	chain      invoker
	breaker    *CircuitBreakerBehavior
	compensate func(ctx context.Context, msg Message) error
}

type subscriber func(ctx context.Context, msg Message) error

// Mediator routes requests to their single handler through the
// behavior chain, and fans events out to subscribers. All methods are
// safe for concurrent use; registration and dispatch may interleave.
type Mediator struct {
	cfg Config

	handlers sync.Map // kind -> *handlerEntry

	subMu       sync.RWMutex
	subscribers map[string][]subscriber

	ids        IDGenerator
	logger     observe.Logger
	tracer     observe.Tracer
	metrics    observe.Metrics
	store      IdempotencyStore
	sink       DeadLetterSink
	serializer Serializer

	// behaviors, when non-nil, replaces the config-driven assembly
	// wholesale. Order is outermost first.
	behaviors []Behavior
}

// Option adjusts a Mediator under construction.
type Option func(*Mediator) error

// WithLogger overrides the structured logger.
func WithLogger(l observe.Logger) Option {
	return func(m *Mediator) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidConfig)
		}
		m.logger = l
		return nil
	}
}

// WithTracer overrides the dispatch tracer.
func WithTracer(t observe.Tracer) Option {
	return func(m *Mediator) error {
		if t == nil {
			return fmt.Errorf("%w: nil tracer", ErrInvalidConfig)
		}
		m.tracer = t
		return nil
	}
}

// WithMetrics overrides the dispatch metrics recorder.
func WithMetrics(mt observe.Metrics) Option {
	return func(m *Mediator) error {
		if mt == nil {
			return fmt.Errorf("%w: nil metrics", ErrInvalidConfig)
		}
		m.metrics = mt
		return nil
	}
}

// WithObserver wires logger, tracer, and metrics from one Observer.
func WithObserver(obs observe.Observer) Option {
	return func(m *Mediator) error {
		if obs == nil {
			return fmt.Errorf("%w: nil observer", ErrInvalidConfig)
		}
		mt, err := observe.NewMetrics(obs.Meter())
		if err != nil {
			return fmt.Errorf("observer metrics: %w", err)
		}
		m.logger = obs.Logger()
		m.tracer = observe.NewTracer(obs.Tracer())
		m.metrics = mt
		return nil
	}
}

// WithIDGenerator overrides the snowflake id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Mediator) error {
		if g == nil {
			return fmt.Errorf("%w: nil id generator", ErrInvalidConfig)
		}
		m.ids = g
		return nil
	}
}

// WithIdempotencyStore overrides the deduplication store backend.
func WithIdempotencyStore(s IdempotencyStore) Option {
	return func(m *Mediator) error {
		if s == nil {
			return fmt.Errorf("%w: nil idempotency store", ErrInvalidConfig)
		}
		m.store = s
		return nil
	}
}

// WithDeadLetterSink overrides the dead-letter backend.
func WithDeadLetterSink(s DeadLetterSink) Option {
	return func(m *Mediator) error {
		if s == nil {
			return fmt.Errorf("%w: nil dead letter sink", ErrInvalidConfig)
		}
		m.sink = s
		return nil
	}
}

// WithSerializer overrides the payload serializer.
func WithSerializer(s Serializer) Option {
	return func(m *Mediator) error {
		if s == nil {
			return fmt.Errorf("%w: nil serializer", ErrInvalidConfig)
		}
		m.serializer = s
		return nil
	}
}

// WithBehaviors replaces the config-driven behavior assembly with an
// explicit chain, outermost first. The handler is always innermost.
func WithBehaviors(behaviors ...Behavior) Option {
	return func(m *Mediator) error {
		for _, b := range behaviors {
			if b == nil {
				return fmt.Errorf("%w: nil behavior", ErrInvalidConfig)
			}
		}
		m.behaviors = behaviors
		return nil
	}
}

// New creates a Mediator from a validated configuration.
func New(cfg Config, opts ...Option) (*Mediator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Mediator{
		cfg:         cfg,
		subscribers: make(map[string][]subscriber),
		logger:      observe.NopLogger(),
		tracer:      observe.NopTracer(),
		metrics:     observe.NopMetrics(),
		serializer:  JSONSerializer{},
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.ids == nil {
		gen, err := snowflake.NewGenerator(snowflake.Config{WorkerID: cfg.WorkerID})
		if err != nil {
			return nil, fmt.Errorf("id generator: %w", err)
		}
		m.ids = gen
	}
	if m.store == nil && cfg.EnableIdempotency {
		m.store = NewShardedStore(cfg.IdempotencyShardCount)
	}
	if m.sink == nil && cfg.EnableDeadLetterQueue {
		m.sink = NewMemoryDeadLetterQueue(cfg.DeadLetterQueueMaxSize, cfg.DeadLetterOverflow)
	}

	return m, nil
}

// assembleBehaviors builds the per-kind chain, outermost first. The
// dead-letter behavior sits outside retry so it observes exhausted
// failures; compensation sits innermost so every failed attempt is
// compensated before a retry.
func (m *Mediator) assembleBehaviors() (behaviors []Behavior, breaker *CircuitBreakerBehavior) {
	if m.behaviors != nil {
		return m.behaviors, nil
	}

	if m.cfg.EnableLogging {
		behaviors = append(behaviors, NewLoggingBehavior(m.logger))
	}
	if m.cfg.EnableTracing {
		behaviors = append(behaviors, NewTracingBehavior(m.tracer))
	}
	if m.cfg.EnableValidation {
		behaviors = append(behaviors, NewValidationBehavior())
	}
	if m.cfg.EnableIdempotency {
		behaviors = append(behaviors, NewIdempotencyBehavior(m.store, m.cfg.IdempotencyRetention, m.logger))
	}
	if m.cfg.CircuitBreakerThreshold > 0 {
		breaker = NewCircuitBreakerBehavior(m.cfg.CircuitBreakerThreshold, m.cfg.CircuitBreakerDuration)
		behaviors = append(behaviors, breaker)
	}
	if m.cfg.EnableDeadLetterQueue {
		behaviors = append(behaviors, NewDeadLetterBehavior(m.sink, m.serializer, m.logger))
	}
	if m.cfg.EnableRetry {
		behaviors = append(behaviors, NewRetryBehavior(m.cfg.MaxRetryAttempts, m.cfg.RetryDelay))
	}
	behaviors = append(behaviors, NewCompensationBehavior(m.logger))

	return behaviors, breaker
}

// RegisterHandler binds h as the single handler for TReq's kind.
// Registering a second handler for the same kind fails with
// ErrDuplicateHandler. The kind is read from a zero-value request, so
// Kind must be a pure function of the type.
func RegisterHandler[TReq any, TRes any, PReq interface {
	Request
	*TReq
}](m *Mediator, h Handler[TReq, TRes]) error {
	if h == nil {
		return ErrNilHandler
	}

	var zero TReq
	kind := PReq(&zero).Kind()
	if kind == "" {
		return ErrEmptyKind
	}

	entry := &handlerEntry{}
	if c, ok := any(h).(Compensatable); ok {
		entry.compensate = c.Compensate
	}

	terminal := func(ctx context.Context, pc *PipelineContext, msg Message) result.Result[any] {
		req, ok := msg.(PReq)
		if !ok {
			return result.Fail[any](result.CodeInternal,
				fmt.Sprintf("kind %q dispatched with message type %T", pc.Kind, msg))
		}
		pc.enteredHandler = true
		res := h.Handle(ctx, (*TReq)(req))
		pc.enteredHandler = false
		return result.Erase(res)
	}

	behaviors, breaker := m.assembleBehaviors()
	entry.breaker = breaker
	entry.chain = buildChain(behaviors, terminal)

	if _, loaded := m.handlers.LoadOrStore(kind, entry); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, kind)
	}
	return nil
}

// Subscribe adds h as a subscriber for TEvt's kind. Any number of
// subscribers may share a kind; zero subscribers is a valid state.
func Subscribe[TEvt any, PEvt interface {
	Event
	*TEvt
}](m *Mediator, h EventHandler[TEvt]) error {
	if h == nil {
		return ErrNilHandler
	}

	var zero TEvt
	kind := PEvt(&zero).Kind()
	if kind == "" {
		return ErrEmptyKind
	}

	sub := func(ctx context.Context, msg Message) error {
		evt, ok := msg.(PEvt)
		if !ok {
			return fmt.Errorf("kind %q published with message type %T", kind, msg)
		}
		return h.Handle(ctx, (*TEvt)(evt))
	}

	m.subMu.Lock()
	m.subscribers[kind] = append(m.subscribers[kind], sub)
	m.subMu.Unlock()
	return nil
}

// Send dispatches req to its registered handler through the behavior
// chain and returns the typed result. The request's envelope is
// stamped in place: a zero MessageID gets a fresh id, a nil
// CorrelationID gets a generated one. Explicit correlation ids,
// including zero and negative values, pass through verbatim.
func Send[TRes any](ctx context.Context, m *Mediator, req Request) result.Result[TRes] {
	if err := ctx.Err(); err != nil {
		return result.As[TRes](failFromContext(err))
	}
	if req == nil {
		return result.Fail[TRes](result.CodeValidationFailed, "nil request")
	}

	kind := req.Kind()
	if kind == "" {
		return result.FailErr[TRes](result.CodeValidationFailed, ErrEmptyKind)
	}

	v, ok := m.handlers.Load(kind)
	if !ok {
		return result.Fail[TRes](result.CodeHandlerNotFound,
			fmt.Sprintf("no handler registered for kind %q", kind))
	}
	entry := v.(*handlerEntry)

	pc, res := m.prepare(req, kind)
	if res != nil {
		return result.As[TRes](*res)
	}
	pc.compensate = entry.compensate

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	out := m.dispatch(ctx, pc, entry, req)

	code := ""
	if f := out.Failure(); f != nil {
		code = string(f.Code)
	}
	m.metrics.RecordDispatch(ctx, msgMeta(pc), time.Since(pc.Start), code)

	out = out.WithMeta("msg.id", pc.MessageID).
		WithMeta("msg.correlation_id", pc.CorrelationID)
	return result.As[TRes](out)
}

// prepare stamps the envelope and builds the per-call context. A
// non-nil result means stamping failed.
func (m *Mediator) prepare(msg Message, kind string) (*PipelineContext, *result.Result[any]) {
	env := msg.Env()

	if env.MessageID == 0 {
		id, err := m.ids.NextID()
		if err != nil {
			res := result.FailErr[any](result.CodeInternal, err)
			return nil, &res
		}
		env.MessageID = id
	}
	if env.CorrelationID == nil {
		cid, err := m.ids.NextID()
		if err != nil {
			res := result.FailErr[any](result.CodeInternal, err)
			return nil, &res
		}
		env.CorrelationID = &cid
	}

	qos := env.Delivery
	if qos == QoSUnset {
		qos = m.cfg.DefaultQoS
	}

	return &PipelineContext{
		Kind:           kind,
		MessageID:      env.MessageID,
		CorrelationID:  *env.CorrelationID,
		HasCorrelation: true,
		QoS:            qos,
		Start:          time.Now(),
	}, nil
}

// dispatch runs the chain with the sole panic boundary. A panic that
// unwound out of the handler is a handler failure; one from a behavior
// is a pipeline failure.
func (m *Mediator) dispatch(ctx context.Context, pc *PipelineContext, entry *handlerEntry, msg Message) (res result.Result[any]) {
	defer func() {
		if r := recover(); r != nil {
			code := result.CodePipelineFailed
			if pc.enteredHandler {
				code = result.CodeHandlerFailed
			}
			m.logger.Error(ctx, "dispatch panicked",
				observe.Field{Key: "msg.kind", Value: pc.Kind},
				observe.Field{Key: "msg.id", Value: pc.MessageID},
				observe.Field{Key: "panic", Value: fmt.Sprintf("%v", r)},
			)
			res = result.Fail[any](code, fmt.Sprintf("panic: %v", r))
		}
	}()
	return entry.chain(ctx, pc, msg)
}

// Publish fans evt out to every subscriber of its kind. Subscribers
// run concurrently, bounded by MaxEventHandlerConcurrency; a panicking
// or failing subscriber never affects its siblings. The joined errors
// of all subscribers are returned. Zero subscribers is a no-op.
//
// Events do not pass through the request behavior chain; the envelope
// is stamped the same way Send stamps it.
func (m *Mediator) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt == nil {
		return errors.New("mediator: nil event")
	}

	kind := evt.Kind()
	if kind == "" {
		return ErrEmptyKind
	}

	m.subMu.RLock()
	subs := make([]subscriber, len(m.subscribers[kind]))
	copy(subs, m.subscribers[kind])
	m.subMu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	if _, failed := m.prepare(evt, kind); failed != nil {
		return failed.Failure()
	}

	var g errgroup.Group
	if m.cfg.MaxEventHandlerConcurrency > 0 {
		g.SetLimit(m.cfg.MaxEventHandlerConcurrency)
	}

	errs := make([]error, len(subs))
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("subscriber %d for kind %q panicked: %v", i, kind, r)
				}
			}()
			errs[i] = sub(ctx, evt)
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

// SubscriberCount returns the number of subscribers for kind.
func (m *Mediator) SubscriberCount(kind string) int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers[kind])
}

// HasHandler reports whether a request handler is registered for kind.
func (m *Mediator) HasHandler(kind string) bool {
	_, ok := m.handlers.Load(kind)
	return ok
}

// BreakerState returns the circuit state guarding kind. ok is false
// when no handler is registered or the breaker is disabled.
func (m *Mediator) BreakerState(kind string) (CircuitState, bool) {
	v, ok := m.handlers.Load(kind)
	if !ok {
		return CircuitClosed, false
	}
	entry := v.(*handlerEntry)
	if entry.breaker == nil {
		return CircuitClosed, false
	}
	return entry.breaker.State(), true
}
