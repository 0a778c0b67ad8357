// Package presence derives online/offline classification from last-activity
// timestamps. The window is a caller-supplied parameter so the same tracker
// serves both the simulation liveness check and the human-facing indicator.
package presence

import (
	"sync"
	"time"
)

// Tracker records the last activity time per player
type Tracker struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		lastSeen: make(map[string]time.Time),
	}
}

// MarkActive records last activity for a player
func (t *Tracker) MarkActive(playerID string, now time.Time) {
	t.mu.Lock()
	t.lastSeen[playerID] = now
	t.mu.Unlock()
}

// LastSeen returns the recorded last activity, if any
func (t *Tracker) LastSeen(playerID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.lastSeen[playerID]
	return ts, ok
}

// IsOnline reports whether the player was active strictly less than window
// ago. A player exactly at the window boundary counts as offline.
func (t *Tracker) IsOnline(playerID string, now time.Time, window time.Duration) bool {
	ts, ok := t.LastSeen(playerID)
	if !ok {
		return false
	}
	return now.Sub(ts) < window
}

// Forget drops a player's activity record
func (t *Tracker) Forget(playerID string) {
	t.mu.Lock()
	delete(t.lastSeen, playerID)
	t.mu.Unlock()
}
