package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/strategy"
	"github.com/parley-dev/parley/internal/stream"
	"github.com/parley-dev/parley/internal/trace"
)

type scriptedProvider struct {
	name    string
	reply   ProviderResponse
	err     error
	calls   int
	lastReq ProviderRequest
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Chat(_ context.Context, req ProviderRequest) (ProviderResponse, error) {
	p.calls++
	p.lastReq = req
	return p.reply, p.err
}

type scriptedRuntime struct {
	readyErr error
	reply    RuntimeReply
	chatErr  error
	calls    int
}

func (r *scriptedRuntime) Ready(context.Context) error { return r.readyErr }

func (r *scriptedRuntime) Chat(context.Context, RuntimeRequest) (RuntimeReply, error) {
	r.calls++
	return r.reply, r.chatErr
}

func newTestDispatcher(t *testing.T, provider *scriptedProvider, runtime RuntimeClient, creds *MemoryCredentials) (*Dispatcher, *trace.Recorder) {
	t.Helper()

	registry := NewProviderRegistry()
	if provider != nil {
		registry.Register(provider)
	}
	if creds == nil {
		creds = NewMemoryCredentials()
	}
	recorder, err := trace.NewRecorder("")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return NewDispatcher(registry, creds, runtime, recorder), recorder
}

func cloudAgent() agent.Definition {
	return agent.Definition{ID: "gpt", Kind: agent.KindCloud, Provider: "openai", Model: "gpt-4", Active: true}
}

func localAgent() agent.Definition {
	return agent.Definition{ID: "llama", Kind: agent.KindLocal, Channel: "default", Active: true}
}

func TestResolve_MissingCredentialFallsBackWithoutNetworkCall(t *testing.T) {
	provider := &scriptedProvider{name: "openai"}
	d, _ := newTestDispatcher(t, provider, nil, nil)

	res, err := d.Resolve(context.Background(), cloudAgent(), "hello", nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusFallback {
		t.Errorf("status = %s", res.Status)
	}
	if !strings.Contains(res.ErrorMessage, "no credential") {
		t.Errorf("errorMessage = %q", res.ErrorMessage)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", provider.calls)
	}
}

func TestResolve_EmptyPromptFallsBack(t *testing.T) {
	provider := &scriptedProvider{name: "openai"}
	creds := NewMemoryCredentials()
	creds.Set("openai", "sk-test")
	d, _ := newTestDispatcher(t, provider, nil, creds)

	res, err := d.Resolve(context.Background(), cloudAgent(), "   \n\t ", nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusFallback {
		t.Errorf("status = %s", res.Status)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", provider.calls)
	}
}

func TestResolve_CloudSuccess(t *testing.T) {
	provider := &scriptedProvider{name: "openai", reply: ProviderResponse{Content: "the answer"}}
	creds := NewMemoryCredentials()
	creds.Set("openai", "sk-test")
	d, recorder := newTestDispatcher(t, provider, nil, creds)

	res, err := d.Resolve(context.Background(), cloudAgent(), "question", nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusSuccess || res.Content != "the answer" {
		t.Errorf("resolution = %+v", res)
	}
	if len(res.Modalities) != 1 || res.Modalities[0] != "text" {
		t.Errorf("modalities = %v", res.Modalities)
	}
	if provider.lastReq.Credential != "sk-test" || provider.lastReq.Model != "gpt-4" {
		t.Errorf("provider request = %+v", provider.lastReq)
	}

	if len(recorder.ByKind(trace.KindRequest)) != 1 {
		t.Error("expected exactly one request trace")
	}
	if len(recorder.ByKind(trace.KindResponse)) != 1 {
		t.Error("expected exactly one response trace")
	}
}

func TestResolve_CloudErrorFallsBackWithTransportText(t *testing.T) {
	provider := &scriptedProvider{name: "openai", err: errors.New("connection reset by peer")}
	creds := NewMemoryCredentials()
	creds.Set("openai", "sk-test")
	d, recorder := newTestDispatcher(t, provider, nil, creds)

	res, err := d.Resolve(context.Background(), cloudAgent(), "question", nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusFallback {
		t.Errorf("status = %s", res.Status)
	}
	if !strings.Contains(res.ErrorMessage, "connection reset") {
		t.Errorf("errorMessage = %q", res.ErrorMessage)
	}
	if len(recorder.ByKind(trace.KindFallback)) != 1 {
		t.Error("expected exactly one fallback trace")
	}
	if len(recorder.ByKind(trace.KindResponse)) != 0 {
		t.Error("no response trace expected on fallback")
	}
}

func TestResolve_RuntimeTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{401, "check your configured token"},
		{404, "activate a local model"},
		{409, "wait"},
		{503, "running"},
		{500, "logs"},
		{418, "runtime returned an error"},
	}

	for _, tc := range cases {
		runtime := &scriptedRuntime{chatErr: errors.NewRuntimeError(tc.status, nil)}
		d, _ := newTestDispatcher(t, nil, runtime, nil)

		res, err := d.Resolve(context.Background(), localAgent(), "hi", nil, nil)
		if err != nil {
			t.Fatalf("status %d: Resolve: %v", tc.status, err)
		}
		if res.Status != StatusFallback {
			t.Errorf("status %d: resolution status = %s", tc.status, res.Status)
		}
		if !strings.Contains(res.ErrorMessage, tc.want) {
			t.Errorf("status %d: errorMessage = %q, want substring %q", tc.status, res.ErrorMessage, tc.want)
		}
	}
}

func TestResolve_RuntimeNotReadyFallsBack(t *testing.T) {
	runtime := &scriptedRuntime{readyErr: errors.ErrRuntimeUnreachable}
	d, _ := newTestDispatcher(t, nil, runtime, nil)

	res, err := d.Resolve(context.Background(), localAgent(), "hi", nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusFallback {
		t.Errorf("status = %s", res.Status)
	}
	if runtime.calls != 0 {
		t.Errorf("chat called %d times after failed readiness, want 0", runtime.calls)
	}
}

func TestResolve_LocalStreaming(t *testing.T) {
	events := make(chan stream.Event, 3)
	events <- stream.Event{Type: stream.EventChunk, Delta: "hel"}
	events <- stream.Event{Type: stream.EventChunk, Delta: "lo"}
	events <- stream.Event{Type: stream.EventResult, Actions: []stream.Action{{Kind: "run"}}}
	close(events)

	runtime := &scriptedRuntime{reply: RuntimeReply{Events: events}}
	d, _ := newTestDispatcher(t, nil, runtime, nil)

	var observed []string
	observer := func(buffer string) { observed = append(observed, buffer) }

	res, err := d.Resolve(context.Background(), localAgent(), "hi", nil, observer)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusSuccess || res.Content != "hello" {
		t.Errorf("resolution = %+v", res)
	}
	if len(res.Actions) != 1 {
		t.Errorf("actions = %v", res.Actions)
	}
	if len(observed) == 0 || observed[len(observed)-1] != "hello" {
		t.Errorf("observed = %v", observed)
	}
}

func TestResolve_InactiveAgentRejected(t *testing.T) {
	d, _ := newTestDispatcher(t, nil, nil, nil)

	inactive := cloudAgent()
	inactive.Active = false
	if _, err := d.Resolve(context.Background(), inactive, "hi", nil, nil); !errors.Is(err, errors.ErrAgentInactive) {
		t.Errorf("err = %v", err)
	}
}

func TestDecoratePrompt(t *testing.T) {
	sctx := &strategy.Context{
		Instructions: []string{"Your role: analyst.", "The user asks: what broke?"},
		Project:      &strategy.Project{Path: "/repo", Branch: "main"},
	}

	decorated := decoratePrompt("what broke?", sctx)
	for _, want := range []string{"/repo", "main", "analyst", "what broke?"} {
		if !strings.Contains(decorated, want) {
			t.Errorf("decorated prompt missing %q:\n%s", want, decorated)
		}
	}
	// The raw prompt is not duplicated when instructions already carry it.
	if strings.Count(decorated, "what broke?") != 1 {
		t.Errorf("prompt duplicated:\n%s", decorated)
	}

	if got := decoratePrompt("plain", nil); got != "plain" {
		t.Errorf("nil context = %q", got)
	}
}
