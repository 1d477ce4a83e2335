package auth

import (
	"strings"
	"sync"
	"time"
)

// Throttle tracks failed login attempts per (username, origin) pair using a
// sliding window and imposes a temporary lockout once the window fills.
// State is process-local and resets on restart; the persistent defence is
// the Argon2id hash cost, not the counter.
//
// All methods are safe for concurrent use. A single mutex guards the maps:
// logins are rare enough that contention is not a concern.
type Throttle struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	lockFor     time.Duration
	failures    map[string][]time.Time
	lockedUntil map[string]time.Time

	now func() time.Time // injectable for tests
}

// NewThrottle builds a throttle allowing maxAttempts failures per window
// before locking the pair out for lockFor.
func NewThrottle(maxAttempts int, window, lockFor time.Duration) *Throttle {
	return &Throttle{
		maxAttempts: maxAttempts,
		window:      window,
		lockFor:     lockFor,
		failures:    make(map[string][]time.Time),
		lockedUntil: make(map[string]time.Time),
		now:         time.Now,
	}
}

// throttleKey joins the normalized username with the request origin so an
// attacker rotating usernames from one address, or one username across
// addresses, fills separate windows.
func throttleKey(username, origin string) string {
	return NormalizeUsername(username) + "|" + strings.TrimSpace(origin)
}

// IsLocked reports whether the pair is currently locked out, and if so for
// how much longer. Expired lockouts are cleaned up on the way through.
func (t *Throttle) IsLocked(username, origin string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := throttleKey(username, origin)
	now := t.now()

	until, ok := t.lockedUntil[key]
	if !ok {
		return false, 0
	}
	if now.Before(until) {
		return true, until.Sub(now)
	}

	// Lockout expired: drop it together with the stale failure window.
	delete(t.lockedUntil, key)
	delete(t.failures, key)
	return false, 0
}

// RegisterFailure records a failed attempt. When the number of failures
// within the window reaches the limit, the pair is locked out and the
// return value is true.
func (t *Throttle) RegisterFailure(username, origin string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := throttleKey(username, origin)
	now := t.now()
	cutoff := now.Add(-t.window)

	recent := t.failures[key][:0:0]
	for _, ts := range t.failures[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	t.failures[key] = recent

	if len(recent) >= t.maxAttempts {
		t.lockedUntil[key] = now.Add(t.lockFor)
		return true
	}
	return false
}

// RegisterSuccess clears all throttle state for the pair after a
// successful authentication.
func (t *Throttle) RegisterSuccess(username, origin string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := throttleKey(username, origin)
	delete(t.failures, key)
	delete(t.lockedUntil, key)
}
