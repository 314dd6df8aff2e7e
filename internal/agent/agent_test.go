package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func testRoster() *Roster {
	return NewRoster([]Definition{
		{ID: "gpt", Kind: KindCloud, Provider: "openai", Active: true, Aliases: []string{"g"}},
		{ID: "claude", Kind: KindCloud, Provider: "anthropic", Active: true, Aliases: []string{"c"}},
		{ID: "llama", Kind: KindLocal, Channel: "default", Active: false, Aliases: []string{"local", "g"}},
	})
}

func TestRoster_Active(t *testing.T) {
	r := testRoster()

	active := r.Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 active agents, got %d", len(active))
	}
	if active[0].ID != "gpt" || active[1].ID != "claude" {
		t.Errorf("active order wrong: %v", active)
	}
}

func TestRoster_ByID(t *testing.T) {
	r := testRoster()

	a, ok := r.ByID("llama")
	if !ok {
		t.Fatal("llama not found")
	}
	if a.Kind != KindLocal {
		t.Errorf("kind = %s, want local", a.Kind)
	}

	if _, ok := r.ByID("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestRoster_MatchAlias(t *testing.T) {
	r := testRoster()

	// "g" matches both gpt (alias) and llama (alias), in roster order.
	matches := r.MatchAlias("g")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches for 'g', got %d", len(matches))
	}
	if matches[0].ID != "gpt" || matches[1].ID != "llama" {
		t.Errorf("match order wrong: %v", matches)
	}

	// Case-insensitive id match.
	matches = r.MatchAlias("CLAUDE")
	if len(matches) != 1 || matches[0].ID != "claude" {
		t.Errorf("id matching should be case-insensitive, got %v", matches)
	}
}

func TestRoster_AllReturnsCopy(t *testing.T) {
	r := testRoster()
	all := r.All()
	all[0].ID = "mutated"

	if a, _ := r.ByID("gpt"); a.ID != "gpt" {
		t.Error("mutation of All() result leaked into roster")
	}
}

func TestLoadRoles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	content := `roles:
  gpt:
    role: implementer
    objective: propose a working solution
  claude:
    role: critic
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write roles file: %v", err)
	}

	roles, err := LoadRoles(path)
	if err != nil {
		t.Fatalf("LoadRoles: %v", err)
	}

	if roles["gpt"].Role != "implementer" {
		t.Errorf("gpt role = %q", roles["gpt"].Role)
	}
	if roles["gpt"].Objective != "propose a working solution" {
		t.Errorf("gpt objective = %q", roles["gpt"].Objective)
	}
	if roles["claude"].Role != "critic" {
		t.Errorf("claude role = %q", roles["claude"].Role)
	}
}

func TestLoadRoles_MissingFile(t *testing.T) {
	roles, err := LoadRoles(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("expected empty map, got %v", roles)
	}
}

func TestApplyRoles(t *testing.T) {
	agents := []Definition{
		{ID: "gpt", Role: "original"},
		{ID: "claude"},
	}
	roles := map[string]RoleAssignment{
		"gpt":     {Role: "reviewer", Objective: "validate"},
		"unknown": {Role: "ignored"},
	}

	out := ApplyRoles(agents, roles)
	if out[0].Role != "reviewer" || out[0].Objective != "validate" {
		t.Errorf("gpt overlay failed: %+v", out[0])
	}
	if out[1].Role != "" {
		t.Errorf("claude should be untouched: %+v", out[1])
	}
	if agents[0].Role != "original" {
		t.Error("ApplyRoles mutated its input")
	}
}
