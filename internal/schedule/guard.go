// Package schedule enforces the at-most-one resolution contract: a pending
// message may have only one in-flight dispatch at a time, and in-flight work
// stops mutating state once its owning scope is torn down.
package schedule

import (
	"fmt"
	"sync"

	"github.com/parley-dev/parley/internal/errors"
)

// Guard is the per-message scheduling registry. A message id is held from
// Begin until the returned release func runs, on terminal resolution or
// cancellation.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{inFlight: map[string]struct{}{}}
}

// Begin claims the message id. It returns ErrAlreadyScheduled when a
// resolution is already in flight; otherwise the caller must invoke the
// returned release exactly once when the resolution reaches a terminal
// state. Release is idempotent.
func (g *Guard) Begin(messageID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[messageID]; busy {
		return nil, fmt.Errorf("%w: %s", errors.ErrAlreadyScheduled, messageID)
	}
	g.inFlight[messageID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, messageID)
			g.mu.Unlock()
		})
	}
	return release, nil
}

// InFlight reports whether the message id currently has a resolution running.
func (g *Guard) InFlight(messageID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[messageID]
	return busy
}

// Len returns the number of in-flight resolutions.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}

// Scope is a conversation's cancellation token. In-flight resolutions check
// it after every suspension point and stop applying mutations once it is
// canceled.
type Scope struct {
	mu       sync.Mutex
	canceled bool
	done     chan struct{}
}

// NewScope returns a live scope.
func NewScope() *Scope {
	return &Scope{done: make(chan struct{})}
}

// Cancel tears the scope down. Safe to call more than once.
func (s *Scope) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canceled {
		s.canceled = true
		close(s.done)
	}
}

// Canceled reports whether the scope has been torn down.
func (s *Scope) Canceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Done returns a channel closed on cancellation, for select-based waits.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// Err returns ErrScopeCanceled once the scope is torn down, nil before.
func (s *Scope) Err() error {
	if s.Canceled() {
		return errors.ErrScopeCanceled
	}
	return nil
}
