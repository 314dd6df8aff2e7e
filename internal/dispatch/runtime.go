package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/internal/stream"
)

// RuntimeTurn is one prior exchange included in a runtime chat request.
type RuntimeTurn struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// RuntimeRequest is the local-runtime chat request.
type RuntimeRequest struct {
	Prompt       string        `json:"prompt"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
	History      []RuntimeTurn `json:"history,omitempty"`
	Stream       bool          `json:"stream,omitempty"`
	Channel      string        `json:"channel,omitempty"`
}

// RuntimeReply is a local-runtime chat reply. For streaming requests Events
// is non-nil and Message/Actions are empty; the caller folds the events with
// a stream.Aggregator. For non-streaming requests Events is nil.
type RuntimeReply struct {
	Message string
	Actions []stream.Action
	Events  <-chan stream.Event
}

// RuntimeClient talks to the locally running inference runtime.
type RuntimeClient interface {
	// Ready reports whether the runtime can take a chat call. It is invoked
	// before every local-kind dispatch.
	Ready(ctx context.Context) error
	Chat(ctx context.Context, req RuntimeRequest) (RuntimeReply, error)
}

// wsConn is the subset of *websocket.Conn the runtime client needs.
// Narrowing the surface lets tests substitute a scripted connection.
type wsConn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// wsDialer abstracts websocket dialing for tests.
type wsDialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (wsConn, *http.Response, error)
}

type gorillaDialer struct {
	dialer *websocket.Dialer
}

func (g gorillaDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (wsConn, *http.Response, error) {
	conn, resp, err := g.dialer.DialContext(ctx, urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// WebSocketRuntime is a RuntimeClient over the runtime's websocket chat
// endpoint, with a plain HTTP readiness probe.
type WebSocketRuntime struct {
	baseURL string
	dialer  wsDialer
	httpc   *http.Client
}

// RuntimeOption configures a WebSocketRuntime.
type RuntimeOption func(*WebSocketRuntime)

// WithHTTPClient overrides the readiness-probe HTTP client.
func WithHTTPClient(c *http.Client) RuntimeOption {
	return func(r *WebSocketRuntime) { r.httpc = c }
}

// withDialer substitutes the websocket dialer. Used by tests.
func withDialer(d wsDialer) RuntimeOption {
	return func(r *WebSocketRuntime) { r.dialer = d }
}

// NewWebSocketRuntime creates a runtime client for the given http(s) base
// URL, e.g. "http://127.0.0.1:8791".
func NewWebSocketRuntime(baseURL string, opts ...RuntimeOption) *WebSocketRuntime {
	r := &WebSocketRuntime{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  gorillaDialer{dialer: websocket.DefaultDialer},
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// chatURL derives the websocket chat endpoint from the http(s) base URL.
func (r *WebSocketRuntime) chatURL() (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse runtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported runtime url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/chat"
	return u.String(), nil
}

// Ready implements RuntimeClient with a GET against /api/health. A transport
// failure maps to ErrRuntimeUnreachable; a non-200 status maps through the
// runtime error taxonomy.
func (r *WebSocketRuntime) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build readiness request: %w", err)
	}

	resp, err := r.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRuntimeUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewRuntimeError(resp.StatusCode, nil)
	}
	return nil
}

// Chat implements RuntimeClient. The request is written as one JSON frame;
// the reply is either a single result frame or, when streaming, a sequence
// of chunk frames terminated by a result or error frame.
func (r *WebSocketRuntime) Chat(ctx context.Context, req RuntimeRequest) (RuntimeReply, error) {
	target, err := r.chatURL()
	if err != nil {
		return RuntimeReply{}, err
	}

	conn, resp, err := r.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return RuntimeReply{}, errors.NewRuntimeError(resp.StatusCode, err)
		}
		return RuntimeReply{}, fmt.Errorf("%w: %v", errors.ErrRuntimeUnreachable, err)
	}

	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return RuntimeReply{}, fmt.Errorf("%w: write chat request: %v", errors.ErrRuntimeUnreachable, err)
	}

	if req.Stream {
		events := make(chan stream.Event)
		go r.readStream(ctx, conn, events)
		return RuntimeReply{Events: events}, nil
	}

	defer conn.Close()
	var single struct {
		Message string          `json:"message"`
		Actions []stream.Action `json:"actions,omitempty"`
		Error   string          `json:"error,omitempty"`
	}
	if err := conn.ReadJSON(&single); err != nil {
		return RuntimeReply{}, fmt.Errorf("%w: read chat reply: %v", errors.ErrRuntimeUnreachable, err)
	}
	if single.Error != "" {
		return RuntimeReply{}, errors.NewRuntimeError(http.StatusInternalServerError, errors.New(single.Error))
	}
	return RuntimeReply{Message: single.Message, Actions: single.Actions}, nil
}

// readStream forwards frames as aggregator events until a terminal frame,
// a read failure, or context cancellation.
func (r *WebSocketRuntime) readStream(ctx context.Context, conn wsConn, events chan<- stream.Event) {
	defer close(events)
	defer conn.Close()

	for {
		var evt stream.Event
		if err := conn.ReadJSON(&evt); err != nil {
			select {
			case events <- stream.Event{Type: stream.EventError, Message: err.Error()}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case events <- evt:
		case <-ctx.Done():
			return
		}

		if evt.Type == stream.EventResult || evt.Type == stream.EventError {
			return
		}
	}
}
