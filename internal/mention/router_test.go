package mention

import (
	"reflect"
	"testing"

	"github.com/parley-dev/parley/internal/agent"
)

func testRoster(t *testing.T, agents ...agent.Definition) *Router {
	t.Helper()
	return NewRouter(agent.NewRoster(agents))
}

func TestParse_TwoMentions(t *testing.T) {
	r := testRoster(t,
		agent.Definition{ID: "gpt", Active: true, Aliases: []string{"gpt"}},
		agent.Definition{ID: "claude", Active: true, Aliases: []string{"claude"}},
	)

	result := r.Parse("gpt: summarize\nclaude: critique")

	if got := result.TargetedIDs(); !reflect.DeepEqual(got, []string{"gpt", "claude"}) {
		t.Errorf("targeted = %v", got)
	}
	if result.Overrides["gpt"] != "summarize" {
		t.Errorf("gpt override = %q", result.Overrides["gpt"])
	}
	if result.Overrides["claude"] != "critique" {
		t.Errorf("claude override = %q", result.Overrides["claude"])
	}
	if len(result.UnmatchedMentions) != 0 {
		t.Errorf("unmatched = %v", result.UnmatchedMentions)
	}
	if result.DefaultPrompt != "" {
		t.Errorf("default prompt = %q", result.DefaultPrompt)
	}
}

func TestParse_InactiveMentionIsUnmatched(t *testing.T) {
	r := testRoster(t,
		agent.Definition{ID: "gpt", Active: true, Aliases: []string{"gpt"}},
		agent.Definition{ID: "claude", Active: false, Aliases: []string{"claude"}},
	)

	result := r.Parse("claude: review this")

	if len(result.Targeted) != 0 {
		t.Errorf("targeted = %v", result.Targeted)
	}
	if len(result.UnmatchedMentions) != 1 {
		t.Fatalf("unmatched = %v", result.UnmatchedMentions)
	}
	um := result.UnmatchedMentions[0]
	if um.Alias != "claude" || !reflect.DeepEqual(um.Candidates, []string{"claude"}) {
		t.Errorf("unmatched entry = %+v", um)
	}
}

func TestParse_NoMentions(t *testing.T) {
	r := testRoster(t,
		agent.Definition{ID: "gpt", Active: true},
	)

	result := r.Parse("just a plain question\nwith two lines")

	if result.HasMentions() {
		t.Errorf("targeted = %v", result.Targeted)
	}
	if result.DefaultPrompt != "just a plain question\nwith two lines" {
		t.Errorf("default prompt = %q", result.DefaultPrompt)
	}
}

func TestParse_DefaultPromptAppendedToOverrides(t *testing.T) {
	r := testRoster(t,
		agent.Definition{ID: "gpt", Active: true},
		agent.Definition{ID: "claude", Active: true},
	)

	result := r.Parse("shared context here\ngpt: focus on performance\nclaude:")

	if result.DefaultPrompt != "shared context here" {
		t.Errorf("default prompt = %q", result.DefaultPrompt)
	}
	if result.Overrides["gpt"] != "focus on performance\n\nshared context here" {
		t.Errorf("gpt override = %q", result.Overrides["gpt"])
	}
	// An empty override becomes the default prompt itself.
	if result.Overrides["claude"] != "shared context here" {
		t.Errorf("claude override = %q", result.Overrides["claude"])
	}
}

func TestParse_DefaultNotDuplicatedWhenAlreadyPresent(t *testing.T) {
	r := testRoster(t, agent.Definition{ID: "gpt", Active: true})

	result := r.Parse("check the budget\ngpt: check the budget and the timeline")

	if result.Overrides["gpt"] != "check the budget and the timeline" {
		t.Errorf("override = %q", result.Overrides["gpt"])
	}
}

func TestParse_FirstActiveMatchWins(t *testing.T) {
	r := testRoster(t,
		agent.Definition{ID: "writer-a", Active: false, Aliases: []string{"writer"}},
		agent.Definition{ID: "writer-b", Active: true, Aliases: []string{"writer"}},
		agent.Definition{ID: "writer-c", Active: true, Aliases: []string{"writer"}},
	)

	result := r.Parse("writer: draft the intro")

	if got := result.TargetedIDs(); !reflect.DeepEqual(got, []string{"writer-b"}) {
		t.Errorf("targeted = %v", got)
	}
}

func TestParse_MultiLineOverride(t *testing.T) {
	r := testRoster(t, agent.Definition{ID: "gpt", Active: true})

	result := r.Parse("gpt: first line\nsecond line\nthird line")

	if result.Overrides["gpt"] != "first line\nsecond line\nthird line" {
		t.Errorf("override = %q", result.Overrides["gpt"])
	}
}

func TestParse_DuplicateMentionDeduplicated(t *testing.T) {
	r := testRoster(t,
		agent.Definition{ID: "gpt", Active: true},
		agent.Definition{ID: "claude", Active: true},
	)

	result := r.Parse("gpt: part one\nclaude: check it\ngpt: part two")

	if got := result.TargetedIDs(); !reflect.DeepEqual(got, []string{"gpt", "claude"}) {
		t.Errorf("targeted = %v", got)
	}
	if result.Overrides["gpt"] != "part one\npart two" {
		t.Errorf("gpt override = %q", result.Overrides["gpt"])
	}
}

func TestParse_NonAliasTokenIsContent(t *testing.T) {
	r := testRoster(t, agent.Definition{ID: "gpt", Active: true})

	result := r.Parse("Note: this is context, not a mention")

	if result.HasMentions() {
		t.Errorf("targeted = %v", result.Targeted)
	}
	if result.DefaultPrompt != "Note: this is context, not a mention" {
		t.Errorf("default prompt = %q", result.DefaultPrompt)
	}
}

func TestParse_CommaSeparatorAndCaseInsensitive(t *testing.T) {
	r := testRoster(t, agent.Definition{ID: "gpt", Active: true, Aliases: []string{"GPT-4"}})

	result := r.Parse("GPT, write a haiku")

	if got := result.TargetedIDs(); !reflect.DeepEqual(got, []string{"gpt"}) {
		t.Errorf("targeted = %v", got)
	}
	if result.Overrides["gpt"] != "write a haiku" {
		t.Errorf("override = %q", result.Overrides["gpt"])
	}
}
