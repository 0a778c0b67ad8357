// Package engine implements the pursuit game logic: capture detection,
// lifecycle transitions and bot movement. Components operate on injected
// store contracts so the algorithms stay independent of the persistence
// technology behind them.
package engine

import (
	"context"
	"time"

	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/geo"
)

// PositionStore is the live position contract the engine reads and writes
type PositionStore interface {
	Upsert(ctx context.Context, playerID string, lat, lng float64, now time.Time) error
	Get(ctx context.Context, playerID string) (domain.Position, error)
	Snapshot(ctx context.Context, playerIDs []string) (map[string]domain.Position, error)
}

// CaptureStore persists capture facts and answers cooldown/win queries
type CaptureStore interface {
	RecordCapture(ctx context.Context, c domain.Capture) error
	CapturesSince(ctx context.Context, gameID string, since time.Time) ([]domain.Capture, error)
	CapturedPlayerIDs(ctx context.Context, gameID string) ([]string, error)
}

// GameStore applies lifecycle transitions to the durable game record
type GameStore interface {
	StartGame(ctx context.Context, gameID string, now time.Time) error
	EndGame(ctx context.Context, gameID, winnerTeamID string, now time.Time) error
	ResetGame(ctx context.Context, gameID string, now time.Time) error
}

// Presence answers activity questions for liveness filtering
type Presence interface {
	MarkActive(playerID string, now time.Time)
	IsOnline(playerID string, now time.Time, window time.Duration) bool
}

// nearest returns the closest candidate position to (lat, lng), skipping the
// given player ID. ok is false when there are no candidates.
func nearest(lat, lng float64, skipID string, candidates map[string]domain.Position) (string, domain.Position, float64, bool) {
	var (
		bestID   string
		bestPos  domain.Position
		bestDist float64
		found    bool
	)
	for id, pos := range candidates {
		if id == skipID {
			continue
		}
		d := geo.DistanceMeters(lat, lng, pos.Lat, pos.Lng)
		if !found || d < bestDist {
			bestID, bestPos, bestDist, found = id, pos, d, true
		}
	}
	return bestID, bestPos, bestDist, found
}
