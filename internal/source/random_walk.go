package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

const (
	initialMin = 100
	initialMax = 5000
	stepMin    = -50
	stepMax    = 100
)

// RandomWalk simulates follower counts. Each profile starts at a random
// value and then moves by a bounded random step per fetch, never below zero.
type RandomWalk struct {
	mu     sync.Mutex
	rng    *rand.Rand
	counts map[string]int64
}

// NewRandomWalk creates a RandomWalk. A zero seed picks a random one.
func NewRandomWalk(seed uint64) *RandomWalk {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomWalk{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		counts: make(map[string]int64),
	}
}

// Fetch returns the next value of the walk for the profile.
func (w *RandomWalk) Fetch(ctx context.Context, platform models.Platform, handle string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	k := key(platform, handle)
	count, ok := w.counts[k]
	if !ok {
		count = initialMin + w.rng.Int64N(initialMax-initialMin+1)
	} else {
		count += stepMin + w.rng.Int64N(stepMax-stepMin+1)
		count = max(count, 0)
	}
	w.counts[k] = count
	return count, nil
}

// Set pins the walk's current value for a profile.
func (w *RandomWalk) Set(platform models.Platform, handle string, count int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[key(platform, handle)] = count
}
