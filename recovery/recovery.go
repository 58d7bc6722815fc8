package recovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/courier/observe"
)

// Component is a stateful component that can rebuild itself after a
// fault. Implementations must be safe to call from the manager while
// still owned by their creator; the manager never takes ownership.
type Component interface {
	Recover(ctx context.Context) error
}

// ComponentFunc adapts a function to the Component interface.
type ComponentFunc func(ctx context.Context) error

func (f ComponentFunc) Recover(ctx context.Context) error { return f(ctx) }

// Result summarizes one recovery pass.
type Result struct {
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// IsSuccess reports whether at least one component recovered and none
// failed.
func (r Result) IsSuccess() bool {
	return r.Succeeded > 0 && r.Failed == 0
}

// AlreadyRecovering is the sentinel result returned to callers rejected
// because a recovery pass was already in flight.
var AlreadyRecovering = Result{Succeeded: -1, Failed: -1}

// Config configures the manager.
type Config struct {
	// Logger receives per-component failure logs. Optional.
	Logger observe.Logger
}

// Manager runs registered components through recovery with
// single-flight semantics.
type Manager struct {
	mu         sync.RWMutex
	names      []string // registration order
	components map[string]Component

	inProgress atomic.Bool
	logger     observe.Logger
}

// NewManager creates a recovery manager.
func NewManager(config ...Config) *Manager {
	var logger observe.Logger
	if len(config) > 0 {
		logger = config[0].Logger
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Manager{
		components: make(map[string]Component),
		logger:     logger,
	}
}

// Register adds a component under the given name. Registering the same
// name again replaces the component but keeps its position.
func (m *Manager) Register(name string, c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.components[name]; !exists {
		m.names = append(m.names, name)
	}
	m.components[name] = c
}

// Unregister removes a component.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.components, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
}

// ComponentNames returns registered names in registration order.
func (m *Manager) ComponentNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// IsRecovering reports whether a recovery pass is in flight.
func (m *Manager) IsRecovering() bool {
	return m.inProgress.Load()
}

// Recover runs every registered component's recovery and counts
// successes and failures independently; one component failing never
// aborts the others.
//
// An already-canceled context fails before the in-progress flag is
// touched. A concurrent call while a pass is running returns
// (AlreadyRecovering, ErrAlreadyRecovering) immediately. Cancellation
// during a pass stops before the next component and returns the
// partial counts alongside ctx.Err().
func (m *Manager) Recover(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if !m.inProgress.CompareAndSwap(false, true) {
		return AlreadyRecovering, ErrAlreadyRecovering
	}
	defer m.inProgress.Store(false)

	m.mu.RLock()
	names := make([]string, len(m.names))
	copy(names, m.names)
	components := make(map[string]Component, len(m.components))
	for name, c := range m.components {
		components[name] = c
	}
	m.mu.RUnlock()

	start := time.Now()
	var res Result

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		if err := components[name].Recover(ctx); err != nil {
			res.Failed++
			m.logger.Error(ctx, "component recovery failed",
				observe.Field{Key: "component", Value: name},
				observe.Field{Key: "error", Value: err.Error()},
			)
			continue
		}
		res.Succeeded++
	}

	res.Duration = time.Since(start)
	m.logger.Info(ctx, "recovery pass finished",
		observe.Field{Key: "succeeded", Value: res.Succeeded},
		observe.Field{Key: "failed", Value: res.Failed},
		observe.Field{Key: "duration_ms", Value: res.Duration.Milliseconds()},
	)
	return res, nil
}
