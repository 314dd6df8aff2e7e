// Package event defines event types for decoupling components in Parley.
// These events enable communication between the conversation hub, dispatcher,
// action manager, and trace recorder without direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "turn.planned", "message.resolved")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Turn Events
// -----------------------------------------------------------------------------

// TurnPlannedEvent is emitted when a strategy produces an orchestration plan.
type TurnPlannedEvent struct {
	baseEvent
	StrategyID string   // Strategy that built the plan
	Turn       int      // Turn number the plan belongs to
	AgentIDs   []string // Agents scheduled this turn, in step order
}

// NewTurnPlannedEvent creates a TurnPlannedEvent.
func NewTurnPlannedEvent(strategyID string, turn int, agentIDs []string) TurnPlannedEvent {
	return TurnPlannedEvent{
		baseEvent:  newBaseEvent("turn.planned"),
		StrategyID: strategyID,
		Turn:       turn,
		AgentIDs:   agentIDs,
	}
}

// -----------------------------------------------------------------------------
// Message Events
// -----------------------------------------------------------------------------

// MessagePendingEvent is emitted when an orchestration step is scheduled and
// its pending message created.
type MessagePendingEvent struct {
	baseEvent
	MessageID string
	AgentID   string
}

// NewMessagePendingEvent creates a MessagePendingEvent.
func NewMessagePendingEvent(messageID, agentID string) MessagePendingEvent {
	return MessagePendingEvent{
		baseEvent: newBaseEvent("message.pending"),
		MessageID: messageID,
		AgentID:   agentID,
	}
}

// MessagePartialEvent is emitted while a streaming reply accumulates. Buffer
// carries the full content received so far, not a delta.
type MessagePartialEvent struct {
	baseEvent
	MessageID string
	AgentID   string
	Buffer    string
}

// NewMessagePartialEvent creates a MessagePartialEvent.
func NewMessagePartialEvent(messageID, agentID, buffer string) MessagePartialEvent {
	return MessagePartialEvent{
		baseEvent: newBaseEvent("message.partial"),
		MessageID: messageID,
		AgentID:   agentID,
		Buffer:    buffer,
	}
}

// MessageResolvedEvent is emitted when a pending message transitions to sent.
type MessageResolvedEvent struct {
	baseEvent
	MessageID string
	AgentID   string
	Fallback  bool   // True when the resolution came from the fallback path
	Error     string // User-facing error message, if any
}

// NewMessageResolvedEvent creates a MessageResolvedEvent.
func NewMessageResolvedEvent(messageID, agentID string, fallback bool, errMsg string) MessageResolvedEvent {
	return MessageResolvedEvent{
		baseEvent: newBaseEvent("message.resolved"),
		MessageID: messageID,
		AgentID:   agentID,
		Fallback:  fallback,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Action Events
// -----------------------------------------------------------------------------

// ActionStatusChangedEvent is emitted on every suggested-action transition.
type ActionStatusChangedEvent struct {
	baseEvent
	ActionID  string
	MessageID string
	Status    string // New status after the transition
}

// NewActionStatusChangedEvent creates an ActionStatusChangedEvent.
func NewActionStatusChangedEvent(actionID, messageID, status string) ActionStatusChangedEvent {
	return ActionStatusChangedEvent{
		baseEvent: newBaseEvent("action.status_changed"),
		ActionID:  actionID,
		MessageID: messageID,
		Status:    status,
	}
}

// -----------------------------------------------------------------------------
// Correction Events
// -----------------------------------------------------------------------------

// CorrectionRecordedEvent is emitted when a human correction is recorded.
type CorrectionRecordedEvent struct {
	baseEvent
	CorrectionID string
	MessageID    string // Message the correction applies to
	TargetAgent  string // Agent selected for the re-review
}

// NewCorrectionRecordedEvent creates a CorrectionRecordedEvent.
func NewCorrectionRecordedEvent(correctionID, messageID, targetAgent string) CorrectionRecordedEvent {
	return CorrectionRecordedEvent{
		baseEvent:    newBaseEvent("correction.recorded"),
		CorrectionID: correctionID,
		MessageID:    messageID,
		TargetAgent:  targetAgent,
	}
}

// -----------------------------------------------------------------------------
// Trace Events
// -----------------------------------------------------------------------------

// TraceRecordedEvent is emitted for every entry appended to the trace log.
type TraceRecordedEvent struct {
	baseEvent
	Kind    string // request, response, fallback, plan, action
	AgentID string
	Payload string // Flattened plain-text rendering
}

// NewTraceRecordedEvent creates a TraceRecordedEvent.
func NewTraceRecordedEvent(kind, agentID, payload string) TraceRecordedEvent {
	return TraceRecordedEvent{
		baseEvent: newBaseEvent("trace.recorded"),
		Kind:      kind,
		AgentID:   agentID,
		Payload:   payload,
	}
}
