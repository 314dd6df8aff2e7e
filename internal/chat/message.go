// Package chat defines the conversation message model and the message store.
// Messages are immutable-until-resolved records: a message is created pending
// when an orchestration step is scheduled and transitions exactly once to
// sent when its dispatch resolves.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author identifies who produced a message.
type Author string

const (
	AuthorSystem Author = "system"
	AuthorUser   Author = "user"
	AuthorAgent  Author = "agent"
)

// Status tracks a message's delivery state. Pending messages are awaiting
// resolution; sent is terminal regardless of success, fallback, or failure.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

// Visibility separates public conversation messages from internal bridge
// notices that describe orchestration decisions.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

// PartType identifies one typed content part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartAudio PartType = "audio"
	PartFile  PartType = "file"
)

// Part is one element of a message's ordered content sequence.
type Part struct {
	Type PartType `json:"type"`
	// Text holds the content for text parts.
	Text string `json:"text,omitempty"`
	// URI references external content for image/audio/file parts.
	URI string `json:"uri,omitempty"`
	// Name is an optional human-readable name for file parts.
	Name string `json:"name,omitempty"`
}

// Feedback is a mutable annotation keyed by message id.
type Feedback struct {
	HasError      bool      `json:"has_error"`
	Notes         string    `json:"notes,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Correction is an immutable append-only record of a human operator
// substituting text for a flagged agent response.
type Correction struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"message_id"`
	OriginalText  string    `json:"original_text"`
	CorrectedText string    `json:"corrected_text"`
	Notes         string    `json:"notes,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is one conversation record.
type Message struct {
	ID         string     `json:"id"`
	Author     Author     `json:"author"`
	Parts      []Part     `json:"parts"`
	Timestamp  time.Time  `json:"timestamp"`
	AgentID    string     `json:"agent_id,omitempty"`
	Status     Status     `json:"status"`
	Visibility Visibility `json:"visibility"`

	// SourcePrompt is the decorated prompt actually sent to the agent.
	SourcePrompt string `json:"source_prompt,omitempty"`

	// ContextJSON carries the orchestration context used to build the
	// message, serialized by the caller. The store treats it as opaque.
	ContextJSON string `json:"context,omitempty"`

	Feedback     *Feedback `json:"feedback,omitempty"`
	CorrectionID string    `json:"correction_id,omitempty"`

	// ActionIDs references suggested actions attached to this message.
	ActionIDs []string `json:"action_ids,omitempty"`
}

// NewID returns a fresh message identifier.
func NewID() string { return uuid.NewString() }

// NewTextMessage creates a sent message with a single text part.
func NewTextMessage(author Author, text string) Message {
	return Message{
		ID:         NewID(),
		Author:     author,
		Parts:      []Part{{Type: PartText, Text: text}},
		Timestamp:  time.Now(),
		Status:     StatusSent,
		Visibility: VisibilityPublic,
	}
}

// NewPendingAgentMessage creates a pending agent message for a scheduled
// orchestration step.
func NewPendingAgentMessage(agentID, sourcePrompt, contextJSON string) Message {
	return Message{
		ID:           NewID(),
		Author:       AuthorAgent,
		Timestamp:    time.Now(),
		AgentID:      agentID,
		Status:       StatusPending,
		Visibility:   VisibilityPublic,
		SourcePrompt: sourcePrompt,
		ContextJSON:  contextJSON,
	}
}

// NewBridgeMessage creates an internal-only system notice describing an
// orchestration decision. Bridge messages are never shown as public
// conversation messages.
func NewBridgeMessage(text string) Message {
	return Message{
		ID:         NewID(),
		Author:     AuthorSystem,
		Parts:      []Part{{Type: PartText, Text: text}},
		Timestamp:  time.Now(),
		Status:     StatusSent,
		Visibility: VisibilityInternal,
	}
}

// PlainText returns the concatenated text parts of the message.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type != PartText {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// IsResolved reports whether the message has reached its terminal status.
func (m Message) IsResolved() bool { return m.Status == StatusSent }
