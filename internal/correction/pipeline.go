// Package correction turns a human-flagged reply into a structured review
// run. Submitting a correction always records an immutable correction and
// flips the flagged message's feedback to an error state before any
// re-dispatch; the review itself is a normal pending message handed back to
// the caller for dispatch.
package correction

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/event"
	"github.com/parley-dev/parley/internal/logging"
)

const (
	defaultNotes = "no notes provided"
	defaultTags  = "none"
)

// Request is one correction submission.
type Request struct {
	MessageID     string
	CorrectedText string
	Notes         string
	Tags          []string
}

// Outcome is the result of a submission: the recorded correction, the agent
// chosen to review it, and the pending review message already added to the
// store. The caller dispatches the pending message like any other step.
type Outcome struct {
	Correction chat.Correction
	Target     agent.Definition
	Pending    chat.Message
}

// Pipeline records corrections and schedules their review runs.
type Pipeline struct {
	store      *chat.Store
	mu         sync.RWMutex
	roster     *agent.Roster
	reviewerID string
	bus        *event.Bus
	logger     *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReviewer designates the fallback reviewer agent used when the original
// responder cannot be identified or is inactive.
func WithReviewer(agentID string) Option {
	return func(p *Pipeline) { p.reviewerID = agentID }
}

// WithBus publishes a CorrectionRecordedEvent per submission.
func WithBus(bus *event.Bus) Option {
	return func(p *Pipeline) { p.bus = bus }
}

// WithLogger sets the pipeline's logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline over the given store and roster.
func NewPipeline(store *chat.Store, roster *agent.Roster, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  store,
		roster: roster,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit records the correction, flags the original message, and creates
// exactly one pending review message targeting the resolved agent. The
// correction and the feedback flip are committed even when no review target
// is available; in that case the error reports the scheduling failure.
func (p *Pipeline) Submit(req Request) (Outcome, error) {
	if strings.TrimSpace(req.CorrectedText) == "" {
		return Outcome{}, errors.NewValidationError("corrected text is empty").WithField("corrected_text")
	}

	original, ok := p.store.Get(req.MessageID)
	if !ok {
		return Outcome{}, errors.NewNotFoundError("message", req.MessageID)
	}

	correction := chat.Correction{
		ID:            chat.NewID(),
		MessageID:     original.ID,
		OriginalText:  original.PlainText(),
		CorrectedText: req.CorrectedText,
		Notes:         req.Notes,
		Tags:          req.Tags,
		CreatedAt:     time.Now(),
	}
	if err := p.store.AddCorrection(correction); err != nil {
		return Outcome{}, errors.Wrap(err, "record correction")
	}
	if _, err := p.store.UpsertFeedback(original.ID, chat.Feedback{
		HasError: true,
		Notes:    req.Notes,
		Tags:     req.Tags,
	}); err != nil {
		return Outcome{}, errors.Wrap(err, "flag message feedback")
	}

	target, err := p.resolveTarget(original)
	if err != nil {
		return Outcome{Correction: correction}, err
	}

	pending := chat.NewPendingAgentMessage(target.ID, reviewPrompt(correction), "")
	if err := p.store.Add(pending); err != nil {
		return Outcome{Correction: correction, Target: target}, errors.Wrap(err, "schedule review message")
	}

	if p.bus != nil {
		p.bus.Publish(event.NewCorrectionRecordedEvent(correction.ID, original.ID, target.ID))
	}
	p.logger.Info("correction recorded",
		"correction_id", correction.ID, "message_id", original.ID, "target", target.ID)

	return Outcome{Correction: correction, Target: target, Pending: pending}, nil
}

// SetRoster swaps in a refreshed roster for subsequent target resolution.
func (p *Pipeline) SetRoster(roster *agent.Roster) {
	p.mu.Lock()
	p.roster = roster
	p.mu.Unlock()
}

// resolveTarget picks the original responder when identifiable and active,
// else the designated reviewer.
func (p *Pipeline) resolveTarget(original chat.Message) (agent.Definition, error) {
	p.mu.RLock()
	roster := p.roster
	p.mu.RUnlock()

	if original.AgentID != "" {
		if def, ok := roster.ByID(original.AgentID); ok && def.Active {
			return def, nil
		}
	}
	if p.reviewerID != "" {
		if def, ok := roster.ByID(p.reviewerID); ok && def.Active {
			return def, nil
		}
	}
	return agent.Definition{}, fmt.Errorf("%w: no active agent available to review the correction", errors.ErrAgentInactive)
}

// reviewPrompt renders the structured review request.
func reviewPrompt(c chat.Correction) string {
	notes := c.Notes
	if notes == "" {
		notes = defaultNotes
	}
	tags := defaultTags
	if len(c.Tags) > 0 {
		tags = strings.Join(c.Tags, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A human operator corrected a previous reply (correction %s).\n\n", c.ID)
	fmt.Fprintf(&b, "Original reply:\n%s\n\n", c.OriginalText)
	fmt.Fprintf(&b, "Corrected reply:\n%s\n\n", c.CorrectedText)
	fmt.Fprintf(&b, "Operator notes: %s\n", notes)
	fmt.Fprintf(&b, "Tags: %s\n\n", tags)
	b.WriteString("Validate the corrected reply. If you believe the correction is wrong, justify rejecting it.")
	return b.String()
}
