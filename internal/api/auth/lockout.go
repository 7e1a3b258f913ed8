package auth

import (
	"sync"
	"time"
)

type lockoutEntry struct {
	failures  int
	expiresAt time.Time
}

// LockoutTracker counts failed password attempts per username and locks the
// account for a fixed duration once the threshold is reached. State is kept
// in memory, so a restart clears every lock.
type LockoutTracker struct {
	mu              sync.Mutex
	entries         map[string]*lockoutEntry
	threshold       int
	lockoutDuration time.Duration
	now             func() time.Time
}

// NewLockoutTracker creates a new lockout tracker. A non-positive threshold
// disables locking.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	return &LockoutTracker{
		entries:         make(map[string]*lockoutEntry),
		threshold:       threshold,
		lockoutDuration: duration,
		now:             time.Now,
	}
}

// RecordFailure records a failed attempt and reports whether the key is now
// locked.
func (t *LockoutTracker) RecordFailure(key string) bool {
	if t.threshold <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweep(now)

	entry, ok := t.entries[key]
	if !ok {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}
	if now.Before(entry.expiresAt) {
		return true
	}

	entry.failures++
	if entry.failures >= t.threshold {
		entry.expiresAt = now.Add(t.lockoutDuration)
		return true
	}
	return false
}

// IsLocked reports whether key is currently locked.
func (t *LockoutTracker) IsLocked(key string) bool {
	return t.Remaining(key) > 0
}

// Remaining returns how long until the lock on key expires.
func (t *LockoutTracker) Remaining(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok || entry.expiresAt.IsZero() {
		return 0
	}
	remaining := entry.expiresAt.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClearFailures forgets failed attempts after a successful login.
func (t *LockoutTracker) ClearFailures(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// sweep drops entries whose lock has expired. Callers hold t.mu.
func (t *LockoutTracker) sweep(now time.Time) {
	for key, entry := range t.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(t.entries, key)
		}
	}
}
