// Package conversation wires the orchestration engine together: mention
// routing, strategy planning, concurrent step dispatch, snapshot updates,
// suggested-action tracking, corrections, and persistence. The Hub is the
// single entry point callers drive a conversation through.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/parley-dev/parley/internal/action"
	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/correction"
	"github.com/parley-dev/parley/internal/dispatch"
	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/event"
	"github.com/parley-dev/parley/internal/logging"
	"github.com/parley-dev/parley/internal/mention"
	"github.com/parley-dev/parley/internal/schedule"
	"github.com/parley-dev/parley/internal/snapshot"
	"github.com/parley-dev/parley/internal/strategy"
	"github.com/parley-dev/parley/internal/stream"
	"github.com/parley-dev/parley/internal/trace"
)

// Hub owns one conversation and coordinates every component for it.
type Hub struct {
	rosterMu    sync.RWMutex
	roster      *agent.Roster
	router      *mention.Router
	strategies  *strategy.Registry
	strategyID  string
	dispatcher  *dispatch.Dispatcher
	messages    *chat.Store
	snapshots   *snapshot.Store
	actions     *action.Manager
	corrections *correction.Pipeline
	guard       *schedule.Guard
	scope       *schedule.Scope
	bus         *event.Bus
	recorder    *trace.Recorder
	logger      *logging.Logger
	project     *strategy.Project
	stateDir    string
}

// Option configures a Hub.
type Option func(*Hub)

// WithStrategy selects the coordination strategy. Default: sequential-turn.
func WithStrategy(id string) Option {
	return func(h *Hub) { h.strategyID = id }
}

// WithProject attaches project context threaded into every step.
func WithProject(p *strategy.Project) Option {
	return func(h *Hub) { h.project = p }
}

// WithStateDir enables persistence of messages, quality state, and the
// action registry under the given directory.
func WithStateDir(dir string) Option {
	return func(h *Hub) { h.stateDir = dir }
}

// WithLogger sets the hub's logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithBus sets the shared event bus.
func WithBus(bus *event.Bus) Option {
	return func(h *Hub) { h.bus = bus }
}

// Deps bundles the constructed components a Hub coordinates.
type Deps struct {
	Roster      *agent.Roster
	Dispatcher  *dispatch.Dispatcher
	Messages    *chat.Store
	Snapshots   *snapshot.Store
	Actions     *action.Manager
	Corrections *correction.Pipeline
	Recorder    *trace.Recorder
}

// NewHub creates a Hub over the given components.
func NewHub(deps Deps, opts ...Option) *Hub {
	h := &Hub{
		roster:      deps.Roster,
		router:      mention.NewRouter(deps.Roster),
		strategies:  strategy.NewRegistry(),
		strategyID:  "sequential-turn",
		dispatcher:  deps.Dispatcher,
		messages:    deps.Messages,
		snapshots:   deps.Snapshots,
		actions:     deps.Actions,
		corrections: deps.Corrections,
		guard:       schedule.NewGuard(),
		scope:       schedule.NewScope(),
		bus:         event.NewBus(),
		recorder:    deps.Recorder,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TurnResult summarizes one completed orchestration turn.
type TurnResult struct {
	Turn       int
	StrategyID string
	// UserMessageID identifies the recorded user utterance.
	UserMessageID string
	// ResolvedIDs lists the agent messages resolved this turn, in step order.
	ResolvedIDs []string
	// Unmatched lists mentions that resolved to no active agent.
	Unmatched []mention.Unmatched
}

// RunTurn runs one full orchestration turn for the given utterance: routing,
// planning, concurrent step resolution, snapshot reconciliation, and action
// registration. It blocks until every step has resolved or the scope is
// canceled.
func (h *Hub) RunTurn(ctx context.Context, input string) (*TurnResult, error) {
	if err := h.scope.Err(); err != nil {
		return nil, err
	}

	h.rosterMu.RLock()
	router, roster := h.router, h.roster
	h.rosterMu.RUnlock()

	route := router.Parse(input)
	participants := route.Targeted
	if len(participants) == 0 {
		participants = roster.Active()
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no active agents to schedule", errors.ErrAgentInactive)
	}

	userPrompt := route.DefaultPrompt
	if userPrompt == "" {
		userPrompt = input
	}

	strat, err := h.strategies.Get(h.strategyID)
	if err != nil {
		return nil, err
	}
	plan, err := strat.BuildPlan(strategy.BuildInput{
		UserPrompt:   userPrompt,
		Participants: participants,
		Snapshot:     h.snapshots.Current(),
		Overrides:    route.Overrides,
		Project:      h.project,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build plan")
	}

	userMsg := chat.NewTextMessage(chat.AuthorUser, input)
	if err := h.messages.Add(userMsg); err != nil {
		return nil, errors.Wrap(err, "record user message")
	}
	for _, notice := range plan.BridgeNotices {
		if err := h.messages.Add(chat.NewBridgeMessage(notice)); err != nil {
			return nil, errors.Wrap(err, "record bridge notice")
		}
	}

	// The turn advances at plan time; step completions only touch summaries
	// and conclusions.
	applied := h.snapshots.Replace(plan.NextSnapshot)
	h.recorder.Record(trace.KindPlan, "", planTracePayload(strat.Name(), applied.Turn, plan))
	h.bus.Publish(event.NewTurnPlannedEvent(strat.Name(), applied.Turn, stepAgentIDs(plan)))
	h.logger.WithTurn(applied.Turn).Info("turn planned",
		"strategy", strat.Name(), "steps", len(plan.Steps), "unmatched", len(route.UnmatchedMentions))

	resolved := h.runSteps(ctx, plan)
	h.persist()

	return &TurnResult{
		Turn:          applied.Turn,
		StrategyID:    strat.Name(),
		UserMessageID: userMsg.ID,
		ResolvedIDs:   resolved,
		Unmatched:     route.UnmatchedMentions,
	}, nil
}

// runSteps schedules every plan step concurrently and waits for all of them.
// Steps read the snapshot as of plan-build time and never block on each
// other; completions apply their transforms independently.
func (h *Hub) runSteps(ctx context.Context, plan *strategy.Plan) []string {
	ids := make([]string, 0, len(plan.Steps))
	var wg sync.WaitGroup

	for _, step := range plan.Steps {
		msg := chat.NewPendingAgentMessage(step.Agent.ID, step.Prompt, contextJSON(step.Context))
		if err := h.messages.Add(msg); err != nil {
			h.logger.Error("failed to record pending message", "agent", step.Agent.ID, "error", err.Error())
			continue
		}
		ids = append(ids, msg.ID)
		h.bus.Publish(event.NewMessagePendingEvent(msg.ID, step.Agent.ID))

		release, err := h.guard.Begin(msg.ID)
		if err != nil {
			// Already in flight; the running resolution owns the message.
			continue
		}

		wg.Add(1)
		go func(step strategy.Step, messageID string, release func()) {
			defer wg.Done()
			defer release()
			h.resolveStep(ctx, step, messageID)
		}(step, msg.ID, release)
	}

	wg.Wait()
	return ids
}

// resolveStep dispatches one step and applies its completion. The scope flag
// is checked after the dispatch suspension point: a canceled scope means the
// resolution must not mutate any further state.
func (h *Hub) resolveStep(ctx context.Context, step strategy.Step, messageID string) {
	sctx := step.Context

	// Local-runtime replies stream; the growing buffer is published so
	// subscribers can render partial content before the message resolves.
	var observer stream.Observer
	if step.Agent.Kind == agent.KindLocal {
		observer = func(buffer string) {
			h.bus.Publish(event.NewMessagePartialEvent(messageID, step.Agent.ID, buffer))
		}
	}

	res, err := h.dispatcher.Resolve(ctx, step.Agent, step.Prompt, &sctx, observer)
	if err != nil {
		h.logger.Error("dispatch rejected", "agent", step.Agent.ID, "error", err.Error())
		if h.scope.Canceled() {
			return
		}
		_, _ = h.messages.Resolve(messageID, chat.Resolution{
			Fallback:     true,
			ErrorMessage: err.Error(),
		})
		h.bus.Publish(event.NewMessageResolvedEvent(messageID, step.Agent.ID, true, err.Error()))
		return
	}

	if h.scope.Canceled() {
		return
	}

	actionIDs := h.registerActions(messageID, step.Agent.ID, res)

	resolution := chat.Resolution{ActionIDs: actionIDs}
	if res.Status == dispatch.StatusSuccess {
		resolution.Parts = []chat.Part{{Type: chat.PartText, Text: res.Content}}
	} else {
		resolution.Fallback = true
		resolution.ErrorMessage = res.ErrorMessage
		resolution.Parts = []chat.Part{{Type: chat.PartText, Text: res.Content}}
	}
	if _, err := h.messages.Resolve(messageID, resolution); err != nil {
		h.logger.Error("resolve failed", "message_id", messageID, "error", err.Error())
		return
	}

	if res.Status == dispatch.StatusSuccess {
		h.snapshots.Apply(func(s snapshot.Snapshot) snapshot.Snapshot {
			next := s.WithAgentSummary(step.Agent.ID, summarize(res.Content))
			return next.RegisterConclusion(snapshot.Conclusion{
				AgentID: step.Agent.ID,
				Author:  step.Agent.DisplayName(),
				Content: summarize(res.Content),
			})
		})
	}

	h.bus.Publish(event.NewMessageResolvedEvent(messageID, step.Agent.ID,
		res.Status == dispatch.StatusFallback, res.ErrorMessage))
}

// registerActions records the suggested actions attached to a resolution.
func (h *Hub) registerActions(messageID, agentID string, res dispatch.Resolution) []string {
	var ids []string
	for _, suggested := range res.Actions {
		kind := action.Kind(suggested.Kind)
		if !action.KnownKind(kind) {
			h.logger.Warn("dropping action with unknown kind", "kind", suggested.Kind)
			continue
		}
		a := h.actions.Register(action.New(messageID, agentID, kind, suggested.Label, suggested.Payload))
		h.recorder.Record(trace.KindAction, agentID, fmt.Sprintf("suggested %s: %s", a.Kind, a.Label))
		ids = append(ids, a.ID)
	}
	return ids
}

// SubmitCorrection records a correction and dispatches its review run.
func (h *Hub) SubmitCorrection(ctx context.Context, req correction.Request) (*correction.Outcome, error) {
	if err := h.scope.Err(); err != nil {
		return nil, err
	}

	outcome, err := h.corrections.Submit(req)
	if err != nil {
		return nil, err
	}

	release, err := h.guard.Begin(outcome.Pending.ID)
	if err != nil {
		return &outcome, err
	}
	defer release()

	h.resolveStep(ctx, strategy.Step{
		Agent:  outcome.Target,
		Prompt: outcome.Pending.SourcePrompt,
		Context: strategy.Context{
			StrategyID: h.strategyID,
			Snapshot:   h.snapshots.Current(),
			UserPrompt: outcome.Pending.SourcePrompt,
			Project:    h.project,
		},
	}, outcome.Pending.ID)

	h.persist()
	return &outcome, nil
}

// TriggerAction confirms and executes a tracked action.
func (h *Hub) TriggerAction(ctx context.Context, id string) (action.Action, error) {
	a, err := h.actions.Trigger(ctx, id)
	h.persist()
	return a, err
}

// RejectAction declines a pending action.
func (h *Hub) RejectAction(id string) (action.Action, error) {
	a, err := h.actions.Reject(id)
	h.persist()
	return a, err
}

// UpdateRoster swaps in a refreshed agent roster. Routing, scheduling, and
// correction targeting pick up the new roster from the next call onward;
// in-flight resolutions keep the definitions they were planned with.
func (h *Hub) UpdateRoster(roster *agent.Roster) {
	h.rosterMu.Lock()
	h.roster = roster
	h.router = mention.NewRouter(roster)
	h.rosterMu.Unlock()

	if h.corrections != nil {
		h.corrections.SetRoster(roster)
	}
	h.logger.Info("roster updated", "agents", roster.Len(), "active", len(roster.Active()))
}

// Bus exposes the hub's event bus for observers.
func (h *Hub) Bus() *event.Bus { return h.bus }

// Messages exposes the message store for read access.
func (h *Hub) Messages() *chat.Store { return h.messages }

// Actions exposes the action manager.
func (h *Hub) Actions() *action.Manager { return h.actions }

// Snapshot returns the current conversation snapshot.
func (h *Hub) Snapshot() snapshot.Snapshot { return h.snapshots.Current() }

// Restore reloads persisted state, merging it under any in-memory defaults.
func (h *Hub) Restore() error {
	if h.stateDir == "" {
		return nil
	}
	if err := h.messages.LoadState(h.stateDir); err != nil {
		return err
	}
	return h.actions.LoadState(h.stateDir)
}

// Close cancels the scope. In-flight resolutions stop mutating state; the
// final persistence pass records what has already resolved.
func (h *Hub) Close() {
	h.scope.Cancel()
	h.persist()
}

// persist writes the message log, quality state, and action registry. Errors
// are logged, not fatal: the next transition retries the write.
func (h *Hub) persist() {
	if h.stateDir == "" {
		return
	}
	if err := h.messages.SaveState(h.stateDir); err != nil {
		h.logger.Error("persist messages failed", "error", err.Error())
	}
	if err := h.actions.SaveState(h.stateDir); err != nil {
		h.logger.Error("persist actions failed", "error", err.Error())
	}
}

// summarize renders a one-line digest of a reply for the snapshot.
func summarize(content string) string {
	const maxDigest = 200
	runes := []rune(content)
	if len(runes) <= maxDigest {
		return content
	}
	return string(runes[:maxDigest]) + "…"
}

// contextJSON serializes the step context for the message record. The stored
// form is informational; failures degrade to an empty context.
func contextJSON(sctx strategy.Context) string {
	payload := struct {
		StrategyID   string   `json:"strategy_id"`
		Turn         int      `json:"turn"`
		Role         string   `json:"role,omitempty"`
		Instructions []string `json:"instructions,omitempty"`
		UserPrompt   string   `json:"user_prompt"`
	}{
		StrategyID:   sctx.StrategyID,
		Turn:         sctx.Snapshot.Turn,
		Role:         sctx.Role,
		Instructions: sctx.Instructions,
		UserPrompt:   sctx.UserPrompt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

func stepAgentIDs(plan *strategy.Plan) []string {
	out := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		out[i] = s.Agent.ID
	}
	return out
}

func planTracePayload(strategyID string, turn int, plan *strategy.Plan) string {
	return fmt.Sprintf("strategy=%s turn=%d steps=%d", strategyID, turn, len(plan.Steps))
}
