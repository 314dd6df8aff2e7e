// Package trace provides an append-only log of orchestration events for
// observability and debugging. Every dispatch produces exactly one request
// entry before the call and exactly one response or fallback entry after it;
// the recorder is the sole observability surface the engine guarantees.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parley-dev/parley/internal/event"
)

// Kind identifies the kind of trace entry.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindFallback Kind = "fallback"
	KindPlan     Kind = "plan"
	KindAction   Kind = "action"
)

// Entry is one appended trace record.
type Entry struct {
	Kind      Kind      `json:"kind"`
	AgentID   string    `json:"agent_id,omitempty"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// defaultCapacity bounds the in-memory entry buffer. The file sink keeps the
// full history; the buffer keeps enough for interactive inspection.
const defaultCapacity = 1000

// Recorder is an append-only trace log with a bounded in-memory buffer and
// an optional JSONL file sink. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	file     *os.File
	bus      *event.Bus
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBus publishes a TraceRecordedEvent for every appended entry.
func WithBus(bus *event.Bus) Option {
	return func(r *Recorder) { r.bus = bus }
}

// WithCapacity overrides the in-memory buffer capacity.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// NewRecorder creates a Recorder. If dir is non-empty, entries are also
// appended to {dir}/trace.jsonl.
func NewRecorder(dir string, opts ...Option) (*Recorder, error) {
	r := &Recorder{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(r)
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create trace directory: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(dir, "trace.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		r.file = file
	}
	return r, nil
}

// Record appends an entry with the current timestamp.
func (r *Recorder) Record(kind Kind, agentID, payload string) Entry {
	entry := Entry{
		Kind:      kind,
		AgentID:   agentID,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.capacity {
		excess := len(r.entries) - r.capacity
		r.entries = r.entries[excess:]
	}
	if r.file != nil {
		if data, err := json.Marshal(entry); err == nil {
			_, _ = r.file.Write(append(data, '\n'))
		}
	}
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(event.NewTraceRecordedEvent(string(kind), agentID, payload))
	}
	return entry
}

// Entries returns a copy of the buffered entries in append order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ByKind returns the buffered entries with the given kind, in append order.
func (r *Recorder) ByKind(kind Kind) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Close flushes and closes the file sink, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close trace file: %w", err)
		}
		r.file = nil
	}
	return nil
}
