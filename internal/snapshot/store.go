package snapshot

import "sync"

// Transform is a pure function from one snapshot to the next.
type Transform func(Snapshot) Snapshot

// Store is the single-writer holder of the current snapshot. Reads return the
// latest value; Apply runs a pure transform against the latest read under the
// write lock, so concurrent step completions each apply their own transform
// with last-applied-wins semantics on the shared fields.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
}

// NewStore creates a store holding the given initial snapshot.
func NewStore(initial Snapshot) *Store {
	if initial.AgentSummaries == nil {
		initial.AgentSummaries = map[string]string{}
	}
	return &Store{current: initial}
}

// Current returns the latest snapshot value.
func (st *Store) Current() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Apply runs the transform against the latest snapshot and installs the
// result. The turn counter is clamped so it never decreases, even if a stale
// transform produces an older turn.
func (st *Store) Apply(fn Transform) Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := fn(st.current)
	if next.Turn < st.current.Turn {
		next.Turn = st.current.Turn
	}
	st.current = next
	return next
}

// Replace installs the given snapshot if its turn is not older than the
// current one; otherwise only the non-turn fields are taken and the current
// turn is kept. Used when a strategy's nextSnapshot lands after a concurrent
// update already advanced the store.
func (st *Store) Replace(next Snapshot) Snapshot {
	return st.Apply(func(Snapshot) Snapshot { return next })
}
