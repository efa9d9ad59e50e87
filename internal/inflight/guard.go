// Package inflight tracks upstream fetches currently in progress so that two
// near-simultaneous triggers for the same key never race to issue duplicate
// provider calls.
package inflight

import "sync"

// Kind identifies the operation being guarded.
type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindEvents   Kind = "events"
)

// Guard is a skip-if-busy set keyed by (kind, symbol).
// TryAcquire returns false when a fetch for the same pair is already running;
// the second caller is expected to back off, not wait. Release must run on
// every exit path - callers defer it immediately after a successful acquire.
type Guard struct {
	mu   sync.Mutex
	busy map[Kind]map[string]struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{
		busy: make(map[Kind]map[string]struct{}),
	}
}

// TryAcquire marks (kind, symbol) as in flight.
// Returns false without blocking if it already is.
func (g *Guard) TryAcquire(kind Kind, symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.busy[kind]
	if !ok {
		set = make(map[string]struct{})
		g.busy[kind] = set
	}

	if _, held := set[symbol]; held {
		return false
	}

	set[symbol] = struct{}{}
	return true
}

// Release removes (kind, symbol) from the in-flight set.
// Safe to call even if the pair is not held.
func (g *Guard) Release(kind Kind, symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if set, ok := g.busy[kind]; ok {
		delete(set, symbol)
	}
}

// InFlight reports whether (kind, symbol) is currently held.
func (g *Guard) InFlight(kind Kind, symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.busy[kind]
	if !ok {
		return false
	}
	_, held := set[symbol]
	return held
}
