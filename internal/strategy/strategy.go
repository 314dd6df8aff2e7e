// Package strategy plans one orchestration turn. A strategy is a pure
// function from the user prompt, participants, and conversation snapshot to
// an ordered plan of per-agent steps. Purity matters: given the same snapshot
// a replay produces the same plan.
package strategy

import (
	"fmt"

	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/snapshot"
)

// Project is an opaque reference to the repository the conversation is
// grounded in. The planner threads it through to prompt decoration untouched.
type Project struct {
	Path         string
	Branch       string
	Instructions string
}

// Context is the per-step payload handed to the dispatcher alongside the
// prompt. Instructions are free-text lines assembled by the strategy.
type Context struct {
	StrategyID   string
	Snapshot     snapshot.Snapshot
	Role         string
	Instructions []string
	UserPrompt   string
	Project      *Project
}

// Step schedules one agent with one prompt.
type Step struct {
	Agent   agent.Definition
	Prompt  string
	Context Context
}

// Plan is the output of a strategy build: ordered steps, internal bridge
// notices describing the plan, and the snapshot the turn should advance to.
type Plan struct {
	Steps         []Step
	BridgeNotices []string
	NextSnapshot  snapshot.Snapshot
}

// BuildInput carries everything a strategy may consult. Role and objective
// assignments ride on the participant definitions themselves.
type BuildInput struct {
	UserPrompt   string
	Participants []agent.Definition
	Snapshot     snapshot.Snapshot
	// Overrides maps agent id to a per-agent prompt replacing UserPrompt.
	Overrides map[string]string
	Project   *Project
}

// promptFor picks the agent's override when present, the shared prompt
// otherwise.
func (in BuildInput) promptFor(id string) string {
	if override, ok := in.Overrides[id]; ok && override != "" {
		return override
	}
	return in.UserPrompt
}

// Strategy builds an orchestration plan for one user turn.
type Strategy interface {
	Name() string
	BuildPlan(in BuildInput) (*Plan, error)
}

// Registry is the fixed catalog of coordination strategies. New strategies
// are a deployment-time decision, so the catalog is closed at construction.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry returns a registry with the built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{strategies: map[string]Strategy{}}
	r.register(SequentialTurn{})
	r.register(CriticReviewer{})
	return r
}

func (r *Registry) register(s Strategy) {
	r.strategies[s.Name()] = s
	r.order = append(r.order, s.Name())
}

// Get returns the named strategy or ErrUnknownStrategy.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names lists the registered strategy ids in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
