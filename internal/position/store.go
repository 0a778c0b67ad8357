// Package position provides the in-memory live position store. Each player's
// position is an independently owned unit of state: writers replace a
// per-player atomic pointer and only take the store lock to create an entry,
// so concurrent upserts for different players never contend.
package position

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manhunt-engine/internal/domain"
)

// Store holds the latest known position per player
type Store struct {
	mu      sync.RWMutex
	players map[string]*atomic.Pointer[domain.Position]
}

// NewStore creates an empty position store
func NewStore() *Store {
	return &Store{
		players: make(map[string]*atomic.Pointer[domain.Position]),
	}
}

// Upsert replaces the stored position for a player. Repeated identical
// upserts are idempotent apart from the timestamp.
func (s *Store) Upsert(ctx context.Context, playerID string, lat, lng float64, now time.Time) error {
	if !domain.ValidCoordinate(lat, lng) {
		return domain.ErrInvalidCoordinate
	}

	s.mu.RLock()
	entry, ok := s.players[playerID]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		entry, ok = s.players[playerID]
		if !ok {
			entry = &atomic.Pointer[domain.Position]{}
			s.players[playerID] = entry
		}
		s.mu.Unlock()
	}

	entry.Store(&domain.Position{
		PlayerID:  playerID,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: now,
	})
	return nil
}

// Get returns the latest known position for a player
func (s *Store) Get(ctx context.Context, playerID string) (domain.Position, error) {
	s.mu.RLock()
	entry, ok := s.players[playerID]
	s.mu.RUnlock()

	if !ok {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	p := entry.Load()
	if p == nil {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	return *p, nil
}

// Snapshot returns the positions of the requested players as observed at a
// single point in time. Players without a known position are omitted. The
// read lock is held only while assembling the snapshot, never across a tick.
func (s *Store) Snapshot(ctx context.Context, playerIDs []string) (map[string]domain.Position, error) {
	out := make(map[string]domain.Position, len(playerIDs))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range playerIDs {
		entry, ok := s.players[id]
		if !ok {
			continue
		}
		if p := entry.Load(); p != nil {
			out[id] = *p
		}
	}
	return out, nil
}

// RemovePlayer removes a player's position, if any
func (s *Store) RemovePlayer(ctx context.Context, playerID string) error {
	s.mu.Lock()
	delete(s.players, playerID)
	s.mu.Unlock()
	return nil
}
