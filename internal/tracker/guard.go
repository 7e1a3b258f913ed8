package tracker

import "sync"

// Guard allows at most one in-flight refresh per profile. TryAcquire never
// blocks: a busy profile is reported, not waited on.
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{busy: make(map[string]struct{})}
}

// TryAcquire marks profileID busy. It returns ok=false when a refresh for the
// profile is already running. release is safe to call more than once.
func (g *Guard) TryAcquire(profileID string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.busy[profileID]; busy {
		return nil, false
	}
	g.busy[profileID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, profileID)
			g.mu.Unlock()
		})
	}, true
}

// InFlight returns the number of profiles currently being refreshed.
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.busy)
}
