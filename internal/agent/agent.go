// Package agent defines agent participants and the roster used to resolve
// them. Agent definitions are owned by an external catalog; this package
// consumes them for routing and dispatch decisions.
package agent

import "strings"

// Kind distinguishes cloud-hosted endpoints from the local inference runtime.
type Kind string

const (
	// KindCloud is a cloud-hosted provider endpoint.
	KindCloud Kind = "cloud"
	// KindLocal is the locally running inference runtime.
	KindLocal Kind = "local"
)

// Definition describes one agent participant.
type Definition struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Provider string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string   `json:"model,omitempty" yaml:"model,omitempty"`
	// Channel names the local-runtime channel for KindLocal agents.
	Channel   string   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Active    bool     `json:"active" yaml:"active"`
	Aliases   []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Role      string   `json:"role,omitempty" yaml:"role,omitempty"`
	Objective string   `json:"objective,omitempty" yaml:"objective,omitempty"`
}

// DisplayName returns the id, the only stable human-readable handle.
func (d Definition) DisplayName() string { return d.ID }

// MatchesAlias reports whether the given token matches the agent's id or one
// of its aliases, case-insensitively.
func (d Definition) MatchesAlias(token string) bool {
	if strings.EqualFold(d.ID, token) {
		return true
	}
	for _, alias := range d.Aliases {
		if strings.EqualFold(alias, token) {
			return true
		}
	}
	return false
}

// Roster holds the full set of known agents in a stable order.
type Roster struct {
	agents []Definition
}

// NewRoster creates a roster from the given definitions. Order is preserved;
// it determines first-match alias resolution.
func NewRoster(agents []Definition) *Roster {
	copied := make([]Definition, len(agents))
	copy(copied, agents)
	return &Roster{agents: copied}
}

// All returns a copy of every agent definition.
func (r *Roster) All() []Definition {
	out := make([]Definition, len(r.agents))
	copy(out, r.agents)
	return out
}

// Active returns the agents currently marked active, in roster order.
func (r *Roster) Active() []Definition {
	var out []Definition
	for _, a := range r.agents {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// ByID returns the agent with the given id, if present.
func (r *Roster) ByID(id string) (Definition, bool) {
	for _, a := range r.agents {
		if a.ID == id {
			return a, true
		}
	}
	return Definition{}, false
}

// MatchAlias returns every agent whose id or aliases match the token,
// in roster order.
func (r *Roster) MatchAlias(token string) []Definition {
	var out []Definition
	for _, a := range r.agents {
		if a.MatchesAlias(token) {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of agents in the roster.
func (r *Roster) Len() int { return len(r.agents) }
