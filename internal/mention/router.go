// Package mention parses a raw user utterance for agent mentions. A mention
// is an agent alias at the start of a line, immediately followed by ':' or
// ','. Everything after the mention up to the next mention becomes that
// agent's prompt override; content before the first mention is the shared
// default prompt. Parsing is independent of which strategy will run.
package mention

import (
	"regexp"
	"strings"

	"github.com/parley-dev/parley/internal/agent"
)

// mentionPattern matches a candidate alias token at the start of a line,
// followed by ':' or ','. Whether the token is an actual mention depends on
// the roster: tokens matching no agent are plain content.
var mentionPattern = regexp.MustCompile(`^\s*([A-Za-z0-9_.-]+)\s*[:,]\s*(.*)$`)

// Unmatched records a mention whose alias matched only inactive agents.
// It is surfaced rather than silently dropped so callers can tell the
// operator why an agent did not answer.
type Unmatched struct {
	Alias      string
	Candidates []string // ids of the matching, inactive agents
}

// Result is the outcome of parsing one utterance.
type Result struct {
	// Targeted lists the mentioned agents in mention order, deduplicated.
	Targeted []agent.Definition

	// Overrides maps agent id to that agent's prompt override.
	Overrides map[string]string

	// UnmatchedMentions lists aliases that resolved to no active agent.
	UnmatchedMentions []Unmatched

	// DefaultPrompt is the content before the first mention, or the whole
	// input when no mentions are present. Callers use it verbatim for
	// non-mentioned participants.
	DefaultPrompt string
}

// HasMentions reports whether any mention resolved to an active agent.
func (r Result) HasMentions() bool { return len(r.Targeted) > 0 }

// TargetedIDs returns the targeted agent ids in mention order.
func (r Result) TargetedIDs() []string {
	out := make([]string, len(r.Targeted))
	for i, a := range r.Targeted {
		out[i] = a.ID
	}
	return out
}

// Router resolves mention aliases against the full roster while honoring the
// active set for reachability.
type Router struct {
	roster *agent.Roster
}

// NewRouter creates a Router over the given roster.
func NewRouter(roster *agent.Roster) *Router {
	return &Router{roster: roster}
}

// Parse scans the utterance for mentions and builds the routing result.
// An alias matching multiple agents resolves to the first active match in
// roster order; if no matching agent is active, the mention is recorded as
// unmatched. A request with zero mentions yields zero targeted agents and
// the whole input as the default prompt.
func (r *Router) Parse(input string) Result {
	result := Result{Overrides: map[string]string{}}

	type segment struct {
		def     agent.Definition
		content []string
	}

	var segments []*segment
	var current *segment
	var defaultLines []string
	seenFirstMention := false

	for _, line := range strings.Split(input, "\n") {
		switch match := r.matchMention(line); match.kind {
		case matchActive:
			seenFirstMention = true
			current = &segment{def: match.def}
			if match.rest != "" {
				current.content = append(current.content, match.rest)
			}
			segments = append(segments, current)
			continue
		case matchInactive:
			// An unmatched mention still starts a segment boundary: its
			// content belongs to no reachable agent and is dropped rather
			// than misattributed to the previous mention or the default.
			seenFirstMention = true
			current = nil
			result.UnmatchedMentions = append(result.UnmatchedMentions, Unmatched{
				Alias:      match.alias,
				Candidates: match.candidates,
			})
			continue
		}

		if current != nil {
			current.content = append(current.content, line)
		} else if !seenFirstMention {
			defaultLines = append(defaultLines, line)
		}
	}

	result.DefaultPrompt = strings.TrimSpace(strings.Join(defaultLines, "\n"))

	seen := map[string]bool{}
	for _, seg := range segments {
		content := strings.TrimSpace(strings.Join(seg.content, "\n"))
		if seen[seg.def.ID] {
			// Duplicate mention: fold the content into the first segment.
			if content != "" {
				existing := result.Overrides[seg.def.ID]
				if existing == "" {
					result.Overrides[seg.def.ID] = content
				} else {
					result.Overrides[seg.def.ID] = existing + "\n" + content
				}
			}
			continue
		}
		seen[seg.def.ID] = true
		result.Targeted = append(result.Targeted, seg.def)
		result.Overrides[seg.def.ID] = content
	}

	// The default prompt is shared context: append it to every override
	// that does not already carry it.
	if result.DefaultPrompt != "" {
		for id, override := range result.Overrides {
			if override == "" {
				result.Overrides[id] = result.DefaultPrompt
			} else if !strings.Contains(override, result.DefaultPrompt) {
				result.Overrides[id] = override + "\n\n" + result.DefaultPrompt
			}
		}
	}

	return result
}

type matchKind int

const (
	matchNone matchKind = iota
	matchActive
	matchInactive
)

type lineMatch struct {
	kind       matchKind
	def        agent.Definition
	rest       string
	alias      string
	candidates []string
}

// matchMention checks whether the line starts with an alias known to the
// roster. An alias matching multiple agents resolves to the first active
// match in roster order; an alias with only inactive matches is reported
// with its candidates so the caller can surface why nothing answered.
func (r *Router) matchMention(line string) lineMatch {
	m := mentionPattern.FindStringSubmatch(line)
	if m == nil {
		return lineMatch{kind: matchNone}
	}

	matches := r.roster.MatchAlias(m[1])
	if len(matches) == 0 {
		return lineMatch{kind: matchNone}
	}

	for _, candidate := range matches {
		if candidate.Active {
			return lineMatch{kind: matchActive, def: candidate, rest: strings.TrimSpace(m[2])}
		}
	}

	ids := make([]string, len(matches))
	for i, candidate := range matches {
		ids[i] = candidate.ID
	}
	return lineMatch{kind: matchInactive, alias: m[1], candidates: ids}
}
