package alert

import "sync"

// notifiedTracker remembers, per user, which symbols were already alerted.
type notifiedTracker struct {
	mu     sync.Mutex
	byUser map[string]SymbolSet
}

func newNotifiedTracker() *notifiedTracker {
	return &notifiedTracker{byUser: make(map[string]SymbolSet)}
}

// snapshot returns a copy of the user's set, safe to read without the lock.
func (t *notifiedTracker) snapshot(userID string) SymbolSet {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(SymbolSet, len(t.byUser[userID]))
	for sym := range t.byUser[userID] {
		out[sym] = struct{}{}
	}
	return out
}

func (t *notifiedTracker) mark(userID, symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.byUser[userID]
	if !ok {
		set = make(SymbolSet)
		t.byUser[userID] = set
	}
	set.Add(symbol)
}

func (t *notifiedTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byUser = make(map[string]SymbolSet)
}
