package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/gobwas/glob"

	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/event"
	"github.com/parley-dev/parley/internal/logging"
)

// Executor runs a confirmed action. The manager treats it as an opaque black
// box: it only records success or failure plus a truncated result preview.
type Executor interface {
	Execute(ctx context.Context, kind Kind, payload map[string]any) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, kind Kind, payload map[string]any) (string, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, kind Kind, payload map[string]any) (string, error) {
	return f(ctx, kind, payload)
}

// Manager owns the action registry and drives the per-action state machine.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	actions  map[string]*Action
	order    []string
	executor Executor
	allow    []glob.Glob
	bus      *event.Bus
	logger   *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBus publishes an ActionStatusChangedEvent on every transition.
func WithBus(bus *event.Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithPathAllowlist restricts open/read actions to paths matching at least
// one of the given glob patterns. An invalid pattern is an error at
// construction rather than a silent pass at trigger time.
func WithPathAllowlist(patterns []string) (ManagerOption, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile allowlist pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return func(m *Manager) { m.allow = compiled }, nil
}

// NewManager creates a Manager around the given executor.
func NewManager(executor Executor, opts ...ManagerOption) *Manager {
	m := &Manager{
		actions:  map[string]*Action{},
		executor: executor,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a new pending action to the registry and returns it.
func (m *Manager) Register(a Action) Action {
	m.mu.Lock()
	if _, exists := m.actions[a.ID]; !exists {
		stored := a
		m.actions[a.ID] = &stored
		m.order = append(m.order, a.ID)
	}
	m.mu.Unlock()

	m.publish(a.ID, a.MessageID, a.Status)
	return a
}

// Get returns the action with the given id.
func (m *Manager) Get(id string) (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.actions[id]
	if !ok {
		return Action{}, false
	}
	return *a, true
}

// All returns every tracked action in registration order.
func (m *Manager) All() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Action, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.actions[id])
	}
	return out
}

// Pending returns the ids of actions awaiting confirmation.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, id := range m.order {
		if m.actions[id].Status == StatusPending {
			out = append(out, id)
		}
	}
	return out
}

// Trigger confirms a pending action and runs it to a terminal state.
// Triggering an action already executing is a no-op; triggering a terminal
// action returns ErrActionTerminal without re-executing. The allowlist is
// checked before the executor is invoked: a disallowed path fails the action
// locally.
func (m *Manager) Trigger(ctx context.Context, id string) (Action, error) {
	m.mu.Lock()
	a, ok := m.actions[id]
	if !ok {
		m.mu.Unlock()
		return Action{}, errors.NewNotFoundError("action", id).WithCause(errors.ErrActionNotFound)
	}
	if a.Status == StatusExecuting {
		// Duplicate confirmation: leave status and updatedAt untouched.
		current := *a
		m.mu.Unlock()
		return current, nil
	}
	if a.Status.Terminal() {
		current := *a
		m.mu.Unlock()
		return current, fmt.Errorf("%w: %s is %s", errors.ErrActionTerminal, id, current.Status)
	}

	// Confirmation received: pass through accepted on the way to executing.
	m.transitionLocked(a, StatusAccepted)
	m.transitionLocked(a, StatusExecuting)
	kind := a.Kind
	payload := a.Payload
	messageID := a.MessageID
	m.mu.Unlock()

	m.publish(id, messageID, StatusAccepted)
	m.publish(id, messageID, StatusExecuting)

	if (kind == KindOpen || kind == KindRead) && !m.pathAllowed(payloadPath(payload)) {
		err := errors.NewActionError("path rejected by allowlist", errors.ErrPathNotAllowed).
			WithActionID(id).WithKind(string(kind))
		return m.finish(id, messageID, StatusFailed, "", err.Error()), err
	}

	result, err := m.executor.Execute(ctx, kind, payload)
	if err != nil {
		actionErr := errors.NewActionError("execution failed", err).
			WithActionID(id).WithKind(string(kind))
		m.logger.Warn("action failed", "action_id", id, "kind", string(kind), "error", err.Error())
		return m.finish(id, messageID, StatusFailed, "", err.Error()), actionErr
	}

	m.logger.Debug("action completed", "action_id", id, "kind", string(kind))
	return m.finish(id, messageID, StatusCompleted, truncatePreview(result), ""), nil
}

// Reject declines a pending action. It is a pure local transition: the
// executor is never invoked.
func (m *Manager) Reject(id string) (Action, error) {
	m.mu.Lock()
	a, ok := m.actions[id]
	if !ok {
		m.mu.Unlock()
		return Action{}, errors.NewNotFoundError("action", id).WithCause(errors.ErrActionNotFound)
	}
	if a.Status != StatusPending {
		current := *a
		m.mu.Unlock()
		if current.Status.Terminal() {
			return current, fmt.Errorf("%w: %s is %s", errors.ErrActionTerminal, id, current.Status)
		}
		return current, fmt.Errorf("%w: %s is %s", errors.ErrActionNotPending, id, current.Status)
	}

	m.transitionLocked(a, StatusRejected)
	current := *a
	m.mu.Unlock()

	m.publish(id, current.MessageID, StatusRejected)
	return current, nil
}

// finish applies the terminal transition after an execution attempt.
func (m *Manager) finish(id, messageID string, status Status, preview, errMsg string) Action {
	m.mu.Lock()
	a := m.actions[id]
	m.transitionLocked(a, status)
	a.ResultPreview = preview
	a.ErrorMessage = errMsg
	current := *a
	m.mu.Unlock()

	m.publish(id, messageID, status)
	return current
}

// transitionLocked updates status and stamps updatedAt. Caller holds m.mu.
func (m *Manager) transitionLocked(a *Action, status Status) {
	a.Status = status
	a.UpdatedAt = timeNow()
}

// pathAllowed reports whether the path passes the allowlist. An empty
// allowlist permits everything; an empty path only passes an empty allowlist.
func (m *Manager) pathAllowed(path string) bool {
	if len(m.allow) == 0 {
		return true
	}
	if path == "" {
		return false
	}
	for _, g := range m.allow {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (m *Manager) publish(actionID, messageID string, status Status) {
	if m.bus != nil {
		m.bus.Publish(event.NewActionStatusChangedEvent(actionID, messageID, string(status)))
	}
}
