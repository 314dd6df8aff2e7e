// Package stream folds an incremental local-runtime reply into one final
// outcome. The runtime emits chunk, result, and error events; callers observe
// the buffer as it grows and receive exactly one terminal state.
package stream

import (
	"fmt"
	"strings"

	"github.com/parley-dev/parley/internal/errors"
)

// EventType discriminates the wire events of a streaming reply.
type EventType string

const (
	EventChunk  EventType = "chunk"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

// Action is a suggested follow-up operation carried on a result event.
type Action struct {
	Kind    string         `json:"kind"`
	Label   string         `json:"label,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Event is one element of a streaming reply sequence.
type Event struct {
	Type    EventType `json:"type"`
	Delta   string    `json:"delta,omitempty"`
	Message string    `json:"message,omitempty"`
	Actions []Action  `json:"actions,omitempty"`
}

// Outcome is the single terminal state of an aggregation.
type Outcome struct {
	Content string
	Actions []Action
}

// Observer is called with the running buffer after each appended delta.
// Intermediate states may be coalesced by the transport, but the final buffer
// state is always observed before the terminal outcome is returned.
type Observer func(buffer string)

// Aggregator folds a stream of events into one Outcome. It is single-use:
// one invocation of Run per reply.
type Aggregator struct {
	observer Observer
}

// NewAggregator creates an aggregator. observer may be nil.
func NewAggregator(observer Observer) *Aggregator {
	return &Aggregator{observer: observer}
}

// Run consumes events until the channel closes or a terminal event arrives.
// A result event's explicit message wins over the accumulated buffer only
// when non-empty; an error event aborts aggregation. A stream that closes
// without a terminal event is an error: the protocol requires exactly one
// result or error per reply.
func (a *Aggregator) Run(events <-chan Event) (Outcome, error) {
	var buffer strings.Builder

	for evt := range events {
		switch evt.Type {
		case EventChunk:
			buffer.WriteString(evt.Delta)
			if a.observer != nil {
				a.observer(buffer.String())
			}
		case EventResult:
			content := evt.Message
			if content == "" {
				content = buffer.String()
			}
			if a.observer != nil {
				a.observer(content)
			}
			return Outcome{Content: content, Actions: evt.Actions}, nil
		case EventError:
			return Outcome{}, fmt.Errorf("runtime stream error: %s", evt.Message)
		default:
			return Outcome{}, fmt.Errorf("%w: unknown stream event type %q", errors.ErrInvalidInput, evt.Type)
		}
	}

	return Outcome{}, fmt.Errorf("%w: stream closed without a terminal event", errors.ErrRuntimeUnreachable)
}
