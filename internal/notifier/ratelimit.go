package notifier

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter on outgoing notifications.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerWindow int
	window       time.Duration
	timestamps   []time.Time
	dropped      int64
	enabled      bool
	now          func() time.Time
}

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	MaxPerWindow int           // default 30
	Window       time.Duration // default 1 minute
	Enabled      bool
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 30,
		Window:       time.Minute,
		Enabled:      true,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxPerWindow <= 0 {
		config.MaxPerWindow = 30
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		maxPerWindow: config.MaxPerWindow,
		window:       config.Window,
		timestamps:   make([]time.Time, 0, config.MaxPerWindow),
		enabled:      config.Enabled,
		now:          time.Now,
	}
}

// Allow consumes a token if one is available in the current window.
func (r *RateLimiter) Allow() bool {
	if !r.enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evict(now.Add(-r.window))

	if len(r.timestamps) >= r.maxPerWindow {
		r.dropped++
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Release refunds the most recently consumed token.
func (r *RateLimiter) Release() {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.timestamps) > 0 {
		r.timestamps = r.timestamps[:len(r.timestamps)-1]
	}
}

// evict drops timestamps before cutoff. Caller holds mu.
func (r *RateLimiter) evict(cutoff time.Time) {
	idx := 0
	for idx < len(r.timestamps) && r.timestamps[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		r.timestamps = append(r.timestamps[:0], r.timestamps[idx:]...)
	}
}

// Stats returns rate limiter statistics.
func (r *RateLimiter) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		Dropped:      r.dropped,
		CurrentCount: len(r.timestamps),
		MaxPerWindow: r.maxPerWindow,
		Window:       r.window,
		Enabled:      r.enabled,
	}
}

// RateLimitStats contains rate limiter statistics.
type RateLimitStats struct {
	Dropped      int64
	CurrentCount int
	MaxPerWindow int
	Window       time.Duration
	Enabled      bool
}
