// Package dispatch resolves one agent prompt into one reply. Cloud agents go
// through a registered provider client; local agents go through the local
// inference runtime, optionally streaming. Every dispatch emits exactly one
// request trace before the call and exactly one response or fallback trace
// after it, and always produces a resolution: failures become fallback
// replies, never a permanently pending message.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/logging"
	"github.com/parley-dev/parley/internal/strategy"
	"github.com/parley-dev/parley/internal/stream"
	"github.com/parley-dev/parley/internal/trace"
)

// Status discriminates a real reply from a fallback explanation.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFallback Status = "fallback"
)

// Resolution is the outcome of one dispatch. A fallback resolution still
// carries Content: the user-facing explanation of what went wrong.
type Resolution struct {
	Status       Status
	Content      string
	Modalities   []string
	Actions      []stream.Action
	ErrorMessage string
}

// FallbackFunc renders the user-facing reply body for a failed dispatch.
type FallbackFunc func(a agent.Definition, prompt string, cause error) string

// defaultFallback names the agent and the reason in one line.
func defaultFallback(a agent.Definition, _ string, cause error) string {
	return fmt.Sprintf("%s could not respond: %s", a.DisplayName(), fallbackReason(cause))
}

// fallbackReason prefers taxonomy guidance over raw error text.
func fallbackReason(cause error) string {
	var runtimeErr *errors.RuntimeError
	if errors.As(cause, &runtimeErr) {
		return runtimeErr.Guidance()
	}
	return cause.Error()
}

// Dispatcher resolves prompts against cloud providers and the local runtime.
type Dispatcher struct {
	providers   *ProviderRegistry
	credentials CredentialStore
	runtime     RuntimeClient
	recorder    *trace.Recorder
	fallback    FallbackFunc
	logger      *logging.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFallback overrides the fallback reply generator.
func WithFallback(f FallbackFunc) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = f }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *logging.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher. runtime may be nil when no local
// agents are configured.
func NewDispatcher(providers *ProviderRegistry, credentials CredentialStore, runtime RuntimeClient, recorder *trace.Recorder, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		providers:   providers,
		credentials: credentials,
		runtime:     runtime,
		recorder:    recorder,
		fallback:    defaultFallback,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve dispatches one prompt to one agent. observer, when non-nil,
// receives the growing buffer of a streaming local reply. The returned
// resolution is always usable: errors surface as fallback resolutions, and
// the error return is reserved for invariant violations (inactive agent,
// unknown kind) where no dispatch was attempted.
func (d *Dispatcher) Resolve(ctx context.Context, a agent.Definition, prompt string, sctx *strategy.Context, observer stream.Observer) (Resolution, error) {
	if !a.Active {
		return Resolution{}, fmt.Errorf("%w: %s", errors.ErrAgentInactive, a.ID)
	}
	if a.Kind != agent.KindCloud && a.Kind != agent.KindLocal {
		return Resolution{}, fmt.Errorf("%w: unknown agent kind %q", errors.ErrInvalidInput, a.Kind)
	}

	decorated := decoratePrompt(prompt, sctx)
	d.recorder.Record(trace.KindRequest, a.ID, decorated)

	var res Resolution
	if a.Kind == agent.KindCloud {
		res = d.resolveCloud(ctx, a, prompt, decorated, sctx)
	} else {
		res = d.resolveLocal(ctx, a, prompt, decorated, sctx, observer)
	}

	if res.Status == StatusSuccess {
		d.recorder.Record(trace.KindResponse, a.ID, res.Content)
	} else {
		d.recorder.Record(trace.KindFallback, a.ID, res.ErrorMessage)
	}
	return res, nil
}

// resolveCloud handles the cloud-provider path. Missing credentials and
// empty prompts fall back before any network call is attempted.
func (d *Dispatcher) resolveCloud(ctx context.Context, a agent.Definition, prompt, decorated string, sctx *strategy.Context) Resolution {
	log := d.logger.WithAgent(a.ID)

	credential, ok := d.credentials.Credential(a.Provider)
	if !ok {
		cause := errors.NewDispatchError("credential lookup failed",
			fmt.Errorf("%w %q", errors.ErrMissingCredential, a.Provider)).
			WithAgentID(a.ID).WithProvider(a.Provider)
		log.Warn("dispatch fell back", "reason", "missing credential")
		return d.fallbackResolution(a, prompt, cause)
	}

	if strings.TrimSpace(prompt) == "" {
		cause := errors.NewDispatchError("nothing to send", errors.ErrEmptyPrompt).WithAgentID(a.ID)
		return d.fallbackResolution(a, prompt, cause)
	}

	provider, err := d.providers.Get(a.Provider)
	if err != nil {
		cause := errors.NewDispatchError("provider lookup failed", err).
			WithAgentID(a.ID).WithProvider(a.Provider)
		return d.fallbackResolution(a, prompt, cause)
	}

	resp, err := provider.Chat(ctx, ProviderRequest{
		Credential:   credential,
		Model:        a.Model,
		Prompt:       decorated,
		SystemPrompt: systemPrompt(sctx),
	})
	if err != nil {
		cause := errors.NewDispatchError("provider call failed", err).
			WithAgentID(a.ID).WithProvider(a.Provider)
		log.Warn("dispatch fell back", "reason", err.Error())
		return d.fallbackResolution(a, prompt, cause)
	}

	modalities := resp.Modalities
	if len(modalities) == 0 {
		modalities = []string{"text"}
	}
	log.Debug("dispatch succeeded", "chars", len(resp.Content))
	return Resolution{Status: StatusSuccess, Content: resp.Content, Modalities: modalities}
}

// resolveLocal handles the local-runtime path: readiness probe, chat call,
// and stream folding. Runtime failures map through the error taxonomy and
// still produce a fallback resolution.
func (d *Dispatcher) resolveLocal(ctx context.Context, a agent.Definition, prompt, decorated string, sctx *strategy.Context, observer stream.Observer) Resolution {
	log := d.logger.WithAgent(a.ID)

	if d.runtime == nil {
		cause := errors.NewDispatchError("no local runtime configured", errors.ErrRuntimeUnreachable).WithAgentID(a.ID)
		return d.fallbackResolution(a, prompt, cause)
	}

	if err := d.runtime.Ready(ctx); err != nil {
		log.Warn("runtime not ready", "reason", err.Error())
		return d.fallbackResolution(a, prompt, err)
	}

	reply, err := d.runtime.Chat(ctx, RuntimeRequest{
		Prompt:       decorated,
		SystemPrompt: systemPrompt(sctx),
		Stream:       observer != nil,
		Channel:      a.Channel,
	})
	if err != nil {
		log.Warn("runtime chat failed", "reason", err.Error())
		return d.fallbackResolution(a, prompt, err)
	}

	content := reply.Message
	actions := reply.Actions
	if reply.Events != nil {
		outcome, err := stream.NewAggregator(observer).Run(reply.Events)
		if err != nil {
			log.Warn("stream aborted", "reason", err.Error())
			return d.fallbackResolution(a, prompt, err)
		}
		content = outcome.Content
		actions = outcome.Actions
	}

	log.Debug("dispatch succeeded", "chars", len(content), "actions", len(actions))
	return Resolution{
		Status:     StatusSuccess,
		Content:    content,
		Modalities: []string{"text"},
		Actions:    actions,
	}
}

// fallbackResolution renders a usable reply out of a failed dispatch.
func (d *Dispatcher) fallbackResolution(a agent.Definition, prompt string, cause error) Resolution {
	return Resolution{
		Status:       StatusFallback,
		Content:      d.fallback(a, prompt, cause),
		Modalities:   []string{"text"},
		ErrorMessage: fallbackReason(cause),
	}
}

// systemPrompt derives the system prompt from the step's role assignment.
func systemPrompt(sctx *strategy.Context) string {
	if sctx == nil || sctx.Role == "" {
		return ""
	}
	return fmt.Sprintf("You are acting as the %s in a multi-agent conversation.", sctx.Role)
}

// decoratePrompt enriches the raw prompt with the strategy's instruction
// lines and project context. The raw prompt is kept even when instructions
// already restate it, so a bare prompt never reaches a provider empty.
func decoratePrompt(prompt string, sctx *strategy.Context) string {
	if sctx == nil {
		return prompt
	}

	var sections []string
	if sctx.Project != nil {
		p := sctx.Project
		var proj []string
		if p.Path != "" {
			proj = append(proj, fmt.Sprintf("Project: %s", p.Path))
		}
		if p.Branch != "" {
			proj = append(proj, fmt.Sprintf("Branch: %s", p.Branch))
		}
		if p.Instructions != "" {
			proj = append(proj, p.Instructions)
		}
		if len(proj) > 0 {
			sections = append(sections, strings.Join(proj, "\n"))
		}
	}
	sections = append(sections, sctx.Instructions...)

	decorated := strings.Join(sections, "\n\n")
	if decorated == "" {
		return prompt
	}
	if !strings.Contains(decorated, prompt) {
		decorated = decorated + "\n\n" + prompt
	}
	return decorated
}
