package chat

import (
	"strings"
	"testing"

	"github.com/parley-dev/parley/internal/errors"
)

func TestStore_AddAndGet(t *testing.T) {
	s := NewStore()

	msg := NewTextMessage(AuthorUser, "hello agents")
	if err := s.Add(msg); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := s.Get(msg.ID)
	if !ok {
		t.Fatal("message not found")
	}
	if got.PlainText() != "hello agents" {
		t.Errorf("PlainText = %q", got.PlainText())
	}

	if err := s.Add(msg); err == nil {
		t.Error("duplicate add should fail")
	}
}

func TestStore_ResolveExactlyOnce(t *testing.T) {
	s := NewStore()

	msg := NewPendingAgentMessage("gpt", "decorated prompt", "")
	if err := s.Add(msg); err != nil {
		t.Fatalf("Add: %v", err)
	}

	resolved, err := s.Resolve(msg.ID, Resolution{
		Parts: []Part{{Type: PartText, Text: "the answer"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusSent {
		t.Errorf("status = %s, want sent", resolved.Status)
	}

	if _, err := s.Resolve(msg.ID, Resolution{}); err == nil {
		t.Error("second resolve should fail")
	}
}

func TestStore_ResolveFallbackKeepsExplanation(t *testing.T) {
	s := NewStore()

	msg := NewPendingAgentMessage("gpt", "prompt", "")
	if err := s.Add(msg); err != nil {
		t.Fatalf("Add: %v", err)
	}

	resolved, err := s.Resolve(msg.ID, Resolution{
		Fallback:     true,
		ErrorMessage: "no credential stored for provider openai",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusSent {
		t.Errorf("fallback must still produce sent, got %s", resolved.Status)
	}
	if !strings.Contains(resolved.PlainText(), "no credential") {
		t.Errorf("fallback explanation missing: %q", resolved.PlainText())
	}
}

func TestStore_ResolveUnknownMessage(t *testing.T) {
	s := NewStore()
	_, err := s.Resolve("missing", Resolution{})
	var notFound *errors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestStore_VisibilityFilter(t *testing.T) {
	s := NewStore()

	if err := s.Add(NewTextMessage(AuthorUser, "public")); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(NewBridgeMessage("turn 3: scheduling 2 agents")); err != nil {
		t.Fatal(err)
	}

	if got := len(s.Messages()); got != 2 {
		t.Errorf("Messages len = %d", got)
	}
	public := s.PublicMessages()
	if len(public) != 1 || public[0].PlainText() != "public" {
		t.Errorf("PublicMessages = %v", public)
	}
}

func TestStore_Pending(t *testing.T) {
	s := NewStore()

	pending := NewPendingAgentMessage("gpt", "p", "")
	if err := s.Add(pending); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(NewTextMessage(AuthorUser, "done")); err != nil {
		t.Fatal(err)
	}

	ids := s.Pending()
	if len(ids) != 1 || ids[0] != pending.ID {
		t.Errorf("Pending = %v", ids)
	}
}

func TestStore_FeedbackUpsert(t *testing.T) {
	s := NewStore()
	msg := NewTextMessage(AuthorAgent, "reply")
	if err := s.Add(msg); err != nil {
		t.Fatal(err)
	}

	fb, err := s.UpsertFeedback(msg.ID, Feedback{HasError: true, Notes: "wrong figure"})
	if err != nil {
		t.Fatalf("UpsertFeedback: %v", err)
	}
	if !fb.HasError || fb.Notes != "wrong figure" {
		t.Errorf("feedback = %+v", fb)
	}
	if fb.LastUpdatedAt.IsZero() {
		t.Error("LastUpdatedAt not stamped")
	}

	// A later upsert merges: tags added, notes kept when empty in update.
	fb2, err := s.UpsertFeedback(msg.ID, Feedback{HasError: true, Tags: []string{"math"}})
	if err != nil {
		t.Fatalf("second UpsertFeedback: %v", err)
	}
	if fb2.Notes != "wrong figure" {
		t.Errorf("notes lost on merge: %+v", fb2)
	}
	if len(fb2.Tags) != 1 || fb2.Tags[0] != "math" {
		t.Errorf("tags = %v", fb2.Tags)
	}
}

func TestStore_Corrections(t *testing.T) {
	s := NewStore()
	msg := NewTextMessage(AuthorAgent, "flawed reply")
	if err := s.Add(msg); err != nil {
		t.Fatal(err)
	}

	c := Correction{
		ID:            NewID(),
		MessageID:     msg.ID,
		OriginalText:  "flawed reply",
		CorrectedText: "fixed reply",
	}
	if err := s.AddCorrection(c); err != nil {
		t.Fatalf("AddCorrection: %v", err)
	}

	got, _ := s.Get(msg.ID)
	if got.CorrectionID != c.ID {
		t.Errorf("message not stamped with correction id")
	}
	if len(s.Corrections()) != 1 {
		t.Errorf("corrections = %v", s.Corrections())
	}
}

func TestStore_PersistRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := NewStore()
	user := NewTextMessage(AuthorUser, "question")
	reply := NewTextMessage(AuthorAgent, "answer")
	if err := s.Add(user); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(reply); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertFeedback(reply.ID, Feedback{HasError: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddCorrection(Correction{ID: "corr-1", MessageID: reply.ID, CorrectedText: "better"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveState(dir); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	// Reload into a store that already has a default message: the merge must
	// keep the in-memory entry and add the persisted ones.
	restored := NewStore()
	seeded := NewTextMessage(AuthorSystem, "welcome")
	if err := restored.Add(seeded); err != nil {
		t.Fatal(err)
	}
	if err := restored.LoadState(dir); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if restored.Len() != 3 {
		t.Fatalf("restored len = %d, want 3", restored.Len())
	}
	if _, ok := restored.Get(seeded.ID); !ok {
		t.Error("seeded message lost on load")
	}
	fb, ok := restored.FeedbackFor(reply.ID)
	if !ok || !fb.HasError {
		t.Errorf("feedback not restored: %+v ok=%v", fb, ok)
	}
	if len(restored.Corrections()) != 1 {
		t.Errorf("corrections not restored")
	}
}

func TestStore_LoadStateMissingFiles(t *testing.T) {
	s := NewStore()
	if err := s.LoadState(t.TempDir()); err != nil {
		t.Fatalf("missing files should be fine: %v", err)
	}
}
