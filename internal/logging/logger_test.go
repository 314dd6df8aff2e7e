package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.WithConversation("conv-1").WithAgent("gpt").Info("dispatch started", "prompt_len", 12)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}

	if entry["msg"] != "dispatch started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["conversation_id"] != "conv-1" {
		t.Errorf("conversation_id = %v", entry["conversation_id"])
	}
	if entry["agent_id"] != "gpt" {
		t.Errorf("agent_id = %v", entry["agent_id"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered messages leaked into log: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing from log: %s", out)
	}
}

func TestLogger_ChildInheritsAttrs(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	child := logger.WithConversation("conv-9").WithTurn(3).With("strategy", "sequential-turn")
	child.Info("turn planned")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["turn"] != float64(3) {
		t.Errorf("turn = %v", entry["turn"])
	}
	if entry["strategy"] != "sequential-turn" {
		t.Errorf("strategy = %v", entry["strategy"])
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != LevelDebug {
		t.Error("lowercase debug should parse")
	}
	if ParseLevel("bogus") != LevelInfo {
		t.Error("unknown level should default to INFO")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
