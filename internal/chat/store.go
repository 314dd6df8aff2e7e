package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/parley-dev/parley/internal/errors"
)

// Resolution carries the outcome applied to a pending message.
type Resolution struct {
	Parts        []Part
	Fallback     bool
	ErrorMessage string
	ActionIDs    []string
}

// Store holds the conversation's messages, feedback, and corrections.
// It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	messages    map[string]*Message
	order       []string
	feedback    map[string]*Feedback
	corrections []Correction
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{
		messages: make(map[string]*Message),
		feedback: make(map[string]*Feedback),
	}
}

// Add appends a message to the log. Duplicate ids are rejected.
func (s *Store) Add(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		return errors.NewValidationError("message id is required").WithField("id")
	}
	if _, exists := s.messages[msg.ID]; exists {
		return errors.NewValidationError("duplicate message id").WithField("id")
	}

	copied := msg
	s.messages[msg.ID] = &copied
	s.order = append(s.order, msg.ID)
	return nil
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}

// Resolve transitions a pending message to sent with the given resolution.
// The transition happens exactly once: resolving an already-sent message is
// an error so duplicate completions are surfaced rather than absorbed.
func (s *Store) Resolve(id string, res Resolution) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return Message{}, errors.NewNotFoundError("message", id)
	}
	if msg.Status != StatusPending {
		return Message{}, fmt.Errorf("message %s is not pending", id)
	}

	msg.Status = StatusSent
	msg.Parts = res.Parts
	msg.ActionIDs = append(msg.ActionIDs, res.ActionIDs...)
	if res.Fallback || res.ErrorMessage != "" {
		// Fallback resolutions keep the error explanation visible in the
		// message body so the conversation is never silently degraded.
		if res.ErrorMessage != "" && len(msg.Parts) == 0 {
			msg.Parts = []Part{{Type: PartText, Text: res.ErrorMessage}}
		}
	}
	return *msg, nil
}

// Messages returns every message in insertion order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.messages[id])
	}
	return out
}

// PublicMessages returns only publicly visible messages in insertion order.
func (s *Store) PublicMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, id := range s.order {
		if s.messages[id].Visibility == VisibilityPublic {
			out = append(out, *s.messages[id])
		}
	}
	return out
}

// Pending returns the ids of messages still awaiting resolution.
func (s *Store) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.order {
		if s.messages[id].Status == StatusPending {
			out = append(out, id)
		}
	}
	return out
}

// UpsertFeedback merges the given feedback into the message's annotation.
// The lastUpdatedAt stamp is always refreshed.
func (s *Store) UpsertFeedback(messageID string, update Feedback) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return Feedback{}, errors.NewNotFoundError("message", messageID)
	}

	fb, ok := s.feedback[messageID]
	if !ok {
		fb = &Feedback{}
		s.feedback[messageID] = fb
	}

	fb.HasError = update.HasError
	if update.Notes != "" {
		fb.Notes = update.Notes
	}
	if len(update.Tags) > 0 {
		fb.Tags = append([]string(nil), update.Tags...)
	}
	fb.LastUpdatedAt = time.Now()

	s.messages[messageID].Feedback = fb
	return *fb, nil
}

// FeedbackFor returns the feedback annotation for a message, if any.
func (s *Store) FeedbackFor(messageID string) (Feedback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fb, ok := s.feedback[messageID]
	if !ok {
		return Feedback{}, false
	}
	return *fb, true
}

// AddCorrection appends an immutable correction record and stamps the
// corrected message with the correction id.
func (s *Store) AddCorrection(c Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" || c.MessageID == "" {
		return errors.NewValidationError("correction id and message id are required")
	}
	if _, ok := s.messages[c.MessageID]; !ok {
		return errors.NewNotFoundError("message", c.MessageID)
	}

	s.corrections = append(s.corrections, c)
	s.messages[c.MessageID].CorrectionID = c.ID
	return nil
}

// Corrections returns a chronological copy of all correction records.
func (s *Store) Corrections() []Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Correction, len(s.corrections))
	copy(out, s.corrections)
	return out
}

// Len returns the number of messages in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
