package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/parley-dev/parley/internal/action"
)

// localExecutor runs confirmed actions on the operator's machine. Actions
// only reach it after an explicit confirmation, and open/read paths have
// already passed the configured allowlist.
type localExecutor struct{}

func (localExecutor) Execute(ctx context.Context, kind action.Kind, payload map[string]any) (string, error) {
	switch kind {
	case action.KindRead, action.KindOpen:
		path := stringField(payload, "path", "file")
		if path == "" {
			return "", fmt.Errorf("payload carries no path")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case action.KindRun:
		command := stringField(payload, "command", "cmd")
		if command == "" {
			return "", fmt.Errorf("payload carries no command")
		}
		out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unsupported action kind %q", kind)
	}
}

func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
