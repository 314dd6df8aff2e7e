package schedule

import (
	"sync"
	"testing"

	"github.com/parley-dev/parley/internal/errors"
)

func TestGuard_AtMostOne(t *testing.T) {
	g := NewGuard()

	release, err := g.Begin("msg-1")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := g.Begin("msg-1"); !errors.Is(err, errors.ErrAlreadyScheduled) {
		t.Errorf("second Begin err = %v", err)
	}

	release()
	if _, err := g.Begin("msg-1"); err != nil {
		t.Errorf("Begin after release: %v", err)
	}
}

func TestGuard_IndependentMessages(t *testing.T) {
	g := NewGuard()

	if _, err := g.Begin("msg-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Begin("msg-2"); err != nil {
		t.Errorf("distinct message blocked: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d", g.Len())
	}
}

func TestGuard_ReleaseIdempotent(t *testing.T) {
	g := NewGuard()

	release, err := g.Begin("msg-1")
	if err != nil {
		t.Fatal(err)
	}
	release()

	// A second resolution claims the id; a stale release must not clear it.
	if _, err := g.Begin("msg-1"); err != nil {
		t.Fatal(err)
	}
	release()
	if !g.InFlight("msg-1") {
		t.Error("stale release cleared a newer claim")
	}
}

func TestGuard_ConcurrentBegins(t *testing.T) {
	g := NewGuard()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Begin("msg-1"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Errorf("granted = %d, want exactly 1", granted)
	}
}

func TestScope_Cancel(t *testing.T) {
	s := NewScope()

	if s.Canceled() {
		t.Error("fresh scope canceled")
	}
	if s.Err() != nil {
		t.Errorf("fresh scope Err = %v", s.Err())
	}

	s.Cancel()
	s.Cancel() // idempotent

	if !s.Canceled() {
		t.Error("scope not canceled")
	}
	if !errors.Is(s.Err(), errors.ErrScopeCanceled) {
		t.Errorf("Err = %v", s.Err())
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done channel not closed")
	}
}
