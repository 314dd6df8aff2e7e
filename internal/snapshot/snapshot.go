// Package snapshot holds the shared conversation state that coordination
// strategies read and write. A Snapshot is a value: every mutation is a pure
// transform returning a new Snapshot, so plan building stays deterministic
// and concurrent step completions can each apply their own transform against
// the latest read.
package snapshot

import "time"

// maxConclusions bounds the conclusion history. Older entries are dropped,
// not archived.
const maxConclusions = 8

// Conclusion is one entry in the bounded conclusion history.
type Conclusion struct {
	AgentID   string    `json:"agent_id,omitempty"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the shared, continuously updated summary of what has been
// concluded so far in the conversation.
type Snapshot struct {
	// Turn is a monotonically incrementing counter. It only increases.
	Turn int `json:"turn"`

	// SharedSummary is the latest synthesized one-line digest.
	SharedSummary string `json:"shared_summary"`

	// AgentSummaries maps agent id to that agent's latest digest.
	// One entry per agent, overwritten not appended.
	AgentSummaries map[string]string `json:"agent_summaries"`

	// LastConclusions holds the most recent conclusions, newest last,
	// capped at maxConclusions entries.
	LastConclusions []Conclusion `json:"last_conclusions"`
}

// New returns an empty snapshot at turn zero.
func New() Snapshot {
	return Snapshot{
		AgentSummaries: map[string]string{},
	}
}

// clone returns a deep copy so transforms never alias the receiver's maps
// or slices.
func (s Snapshot) clone() Snapshot {
	out := s
	out.AgentSummaries = make(map[string]string, len(s.AgentSummaries))
	for k, v := range s.AgentSummaries {
		out.AgentSummaries[k] = v
	}
	out.LastConclusions = make([]Conclusion, len(s.LastConclusions))
	copy(out.LastConclusions, s.LastConclusions)
	return out
}

// NextTurn returns a snapshot with the turn counter advanced by one.
func (s Snapshot) NextTurn() Snapshot {
	out := s.clone()
	out.Turn++
	return out
}

// WithSharedSummary returns a snapshot with the shared digest replaced.
func (s Snapshot) WithSharedSummary(summary string) Snapshot {
	out := s.clone()
	out.SharedSummary = summary
	return out
}

// WithAgentSummary returns a snapshot with the given agent's digest replaced.
// Summaries are keyed by agent id, so concurrent writers for different agents
// never collide on the same entry.
func (s Snapshot) WithAgentSummary(agentID, summary string) Snapshot {
	out := s.clone()
	out.AgentSummaries[agentID] = summary
	return out
}

// RegisterConclusion returns a snapshot with the conclusion appended,
// dropping the oldest entries beyond the bound. A zero timestamp is stamped
// with the current time; explicit timestamps survive, so reloaded history
// keeps its original times.
func (s Snapshot) RegisterConclusion(c Conclusion) Snapshot {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	out := s.clone()
	out.LastConclusions = append(out.LastConclusions, c)
	if len(out.LastConclusions) > maxConclusions {
		excess := len(out.LastConclusions) - maxConclusions
		out.LastConclusions = out.LastConclusions[excess:]
	}
	return out
}

// AgentSummary returns the latest digest for the given agent, if any.
func (s Snapshot) AgentSummary(agentID string) (string, bool) {
	summary, ok := s.AgentSummaries[agentID]
	return summary, ok
}

// RecentConclusions returns up to n of the most recent conclusions,
// oldest first. The returned slice is a copy.
func (s Snapshot) RecentConclusions(n int) []Conclusion {
	if n <= 0 || len(s.LastConclusions) == 0 {
		return nil
	}
	if n > len(s.LastConclusions) {
		n = len(s.LastConclusions)
	}
	out := make([]Conclusion, n)
	copy(out, s.LastConclusions[len(s.LastConclusions)-n:])
	return out
}

// LatestConclusion returns the newest conclusion, if any.
func (s Snapshot) LatestConclusion() (Conclusion, bool) {
	if len(s.LastConclusions) == 0 {
		return Conclusion{}, false
	}
	return s.LastConclusions[len(s.LastConclusions)-1], true
}
