package action

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/event"
)

type countingExecutor struct {
	mu     sync.Mutex
	calls  int
	result string
	err    error
}

func (e *countingExecutor) Execute(_ context.Context, _ Kind, _ map[string]any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.result, e.err
}

func (e *countingExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestTrigger_CompletesWithPreview(t *testing.T) {
	exec := &countingExecutor{result: "file opened"}
	m := NewManager(exec)

	a := m.Register(New("msg-1", "gpt", KindRun, "", map[string]any{"command": "go test"}))

	done, err := m.Trigger(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %s", done.Status)
	}
	if done.ResultPreview != "file opened" {
		t.Errorf("preview = %q", done.ResultPreview)
	}
	if done.UpdatedAt.Before(done.CreatedAt) {
		t.Error("updatedAt not stamped")
	}
	if exec.callCount() != 1 {
		t.Errorf("executor calls = %d", exec.callCount())
	}
}

func TestTrigger_FailureRecordsError(t *testing.T) {
	exec := &countingExecutor{err: errors.New("permission denied")}
	m := NewManager(exec)

	a := m.Register(New("msg-1", "gpt", KindRun, "", nil))

	failed, err := m.Trigger(context.Background(), a.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if failed.Status != StatusFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if !strings.Contains(failed.ErrorMessage, "permission denied") {
		t.Errorf("errorMessage = %q", failed.ErrorMessage)
	}
}

func TestTrigger_ExecutingIsNoOp(t *testing.T) {
	exec := &countingExecutor{}
	m := NewManager(exec)
	a := m.Register(New("msg-1", "gpt", KindRun, "", nil))

	// Force the executing state without an executor round trip.
	m.mu.Lock()
	stored := m.actions[a.ID]
	stored.Status = StatusExecuting
	stamped := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	stored.UpdatedAt = stamped
	m.mu.Unlock()

	got, err := m.Trigger(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if got.Status != StatusExecuting {
		t.Errorf("status = %s", got.Status)
	}
	if !got.UpdatedAt.Equal(stamped) {
		t.Error("updatedAt changed on duplicate trigger")
	}
	if exec.callCount() != 0 {
		t.Errorf("executor calls = %d, want 0", exec.callCount())
	}
}

func TestTrigger_TerminalNotReExecuted(t *testing.T) {
	exec := &countingExecutor{result: "ok"}
	m := NewManager(exec)
	a := m.Register(New("msg-1", "gpt", KindRun, "", nil))

	if _, err := m.Trigger(context.Background(), a.ID); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if _, err := m.Trigger(context.Background(), a.ID); !errors.Is(err, errors.ErrActionTerminal) {
		t.Errorf("err = %v", err)
	}
	if exec.callCount() != 1 {
		t.Errorf("executor calls = %d, want 1", exec.callCount())
	}
}

func TestReject_PureLocalTransition(t *testing.T) {
	exec := &countingExecutor{}
	m := NewManager(exec)
	a := m.Register(New("msg-1", "gpt", KindOpen, "", map[string]any{"path": "main.go"}))

	rejected, err := m.Reject(a.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Errorf("status = %s", rejected.Status)
	}
	if exec.callCount() != 0 {
		t.Errorf("executor calls = %d, want 0", exec.callCount())
	}

	if _, err := m.Reject(a.ID); !errors.Is(err, errors.ErrActionTerminal) {
		t.Errorf("second reject err = %v", err)
	}
}

func TestTrigger_PathAllowlist(t *testing.T) {
	exec := &countingExecutor{result: "contents"}
	allow, err := WithPathAllowlist([]string{"src/**", "*.md"})
	if err != nil {
		t.Fatalf("WithPathAllowlist: %v", err)
	}
	m := NewManager(exec, allow)

	allowed := m.Register(New("msg-1", "gpt", KindRead, "", map[string]any{"path": "src/parser/lex.go"}))
	if done, err := m.Trigger(context.Background(), allowed.ID); err != nil || done.Status != StatusCompleted {
		t.Fatalf("allowed path: status=%v err=%v", done.Status, err)
	}

	blocked := m.Register(New("msg-1", "gpt", KindOpen, "", map[string]any{"path": "/etc/passwd"}))
	failed, err := m.Trigger(context.Background(), blocked.ID)
	if !errors.Is(err, errors.ErrPathNotAllowed) {
		t.Fatalf("err = %v", err)
	}
	if failed.Status != StatusFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if exec.callCount() != 1 {
		t.Errorf("executor calls = %d, want 1 (blocked path must not execute)", exec.callCount())
	}

	// Run actions carry commands, not paths: the allowlist does not apply.
	run := m.Register(New("msg-1", "gpt", KindRun, "", map[string]any{"command": "make"}))
	if done, err := m.Trigger(context.Background(), run.ID); err != nil || done.Status != StatusCompleted {
		t.Fatalf("run action: status=%v err=%v", done.Status, err)
	}
}

func TestTrigger_PreviewTruncated(t *testing.T) {
	exec := &countingExecutor{result: strings.Repeat("x", 1000)}
	m := NewManager(exec)
	a := m.Register(New("msg-1", "gpt", KindRun, "", nil))

	done, err := m.Trigger(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(done.ResultPreview) != 400 {
		t.Errorf("preview len = %d, want 400", len(done.ResultPreview))
	}
}

func TestTrigger_UnknownAction(t *testing.T) {
	m := NewManager(&countingExecutor{})
	if _, err := m.Trigger(context.Background(), "missing"); !errors.Is(err, errors.ErrActionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestManager_PublishesTransitions(t *testing.T) {
	bus := event.NewBus()
	var statuses []string
	bus.Subscribe("action.status_changed", func(e event.Event) {
		statuses = append(statuses, e.(event.ActionStatusChangedEvent).Status)
	})

	m := NewManager(&countingExecutor{result: "ok"}, WithBus(bus))
	a := m.Register(New("msg-1", "gpt", KindRun, "", nil))
	if _, err := m.Trigger(context.Background(), a.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	want := []string{"pending", "accepted", "executing", "completed"}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v", statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %s, want %s", i, statuses[i], want[i])
		}
	}
}

func TestLabelSynthesis(t *testing.T) {
	a := New("", "", KindOpen, "", map[string]any{"path": "main.go"})
	if a.Label != "Open main.go" {
		t.Errorf("label = %q", a.Label)
	}

	b := New("", "", KindRun, "custom label", map[string]any{"command": "make"})
	if b.Label != "custom label" {
		t.Errorf("explicit label overridden: %q", b.Label)
	}

	c := New("", "", KindRead, "", nil)
	if c.Label != "Read file" {
		t.Errorf("label = %q", c.Label)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(&countingExecutor{result: "done"})
	completed := m.Register(New("msg-1", "gpt", KindRun, "", nil))
	if _, err := m.Trigger(context.Background(), completed.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	pending := m.Register(New("msg-2", "gpt", KindOpen, "", map[string]any{"path": "a.go"}))
	if err := m.SaveState(dir); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	// Reload into a manager that already tracks one action: in-memory wins.
	restored := NewManager(&countingExecutor{})
	seeded := restored.Register(New("msg-3", "claude", KindRun, "", nil))
	if err := restored.LoadState(dir); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if len(restored.All()) != 3 {
		t.Fatalf("restored count = %d, want 3", len(restored.All()))
	}
	got, ok := restored.Get(completed.ID)
	if !ok || got.Status != StatusCompleted || got.ResultPreview != "done" {
		t.Errorf("completed action not restored: %+v", got)
	}
	if _, ok := restored.Get(pending.ID); !ok {
		t.Error("pending action not restored")
	}
	if _, ok := restored.Get(seeded.ID); !ok {
		t.Error("seeded action lost on load")
	}
}

func TestLoadState_MissingFile(t *testing.T) {
	m := NewManager(&countingExecutor{})
	if err := m.LoadState(t.TempDir()); err != nil {
		t.Fatalf("missing file should be fine: %v", err)
	}
}
