// Package action tracks agent-suggested follow-up operations as a
// confirmable work queue. Each action moves through a small state machine;
// every transition is persisted so the queue survives a restart.
package action

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of suggested-action kinds.
type Kind string

const (
	KindOpen Kind = "open"
	KindRead Kind = "read"
	KindRun  Kind = "run"
)

// KnownKind reports whether k is in the closed kind set.
func KnownKind(k Kind) bool {
	return k == KindOpen || k == KindRead || k == KindRun
}

// Status is an action's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// maxPreviewLen bounds the persisted result preview.
const maxPreviewLen = 400

// timeNow is swapped out by tests that assert updatedAt behavior.
var timeNow = time.Now

// Action is one tracked suggested operation.
type Action struct {
	ID            string         `json:"id"`
	MessageID     string         `json:"message_id,omitempty"`
	AgentID       string         `json:"agent_id,omitempty"`
	Kind          Kind           `json:"kind"`
	Label         string         `json:"label"`
	Payload       map[string]any `json:"payload,omitempty"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ResultPreview string         `json:"result_preview,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// New creates a pending action. A missing label is synthesized from the kind
// and payload.
func New(messageID, agentID string, kind Kind, label string, payload map[string]any) Action {
	now := timeNow()
	if label == "" {
		label = synthesizeLabel(kind, payload)
	}
	return Action{
		ID:        uuid.NewString(),
		MessageID: messageID,
		AgentID:   agentID,
		Kind:      kind,
		Label:     label,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// synthesizeLabel builds a human-readable label from the kind and payload.
func synthesizeLabel(kind Kind, payload map[string]any) string {
	subject := payloadSubject(payload)
	switch kind {
	case KindOpen:
		if subject != "" {
			return fmt.Sprintf("Open %s", subject)
		}
		return "Open file"
	case KindRead:
		if subject != "" {
			return fmt.Sprintf("Read %s", subject)
		}
		return "Read file"
	case KindRun:
		if subject != "" {
			return fmt.Sprintf("Run %s", subject)
		}
		return "Run command"
	default:
		return string(kind)
	}
}

// payloadSubject picks the most descriptive payload value, preferring the
// well-known keys before falling back to the first string value.
func payloadSubject(payload map[string]any) string {
	for _, key := range []string{"path", "file", "command", "cmd"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// payloadPath returns the filesystem path carried by an open/read payload.
func payloadPath(payload map[string]any) string {
	for _, key := range []string{"path", "file"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// truncatePreview bounds a result preview to maxPreviewLen characters,
// counting runes so a multibyte character is never split.
func truncatePreview(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxPreviewLen {
		return s
	}
	return string(runes[:maxPreviewLen])
}
