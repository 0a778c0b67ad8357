package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
)

// Detector finds hunter/hunted pairs within the capture radius and commits
// capture facts under the cooldown and probability policy.
type Detector struct {
	positions  PositionStore
	captures   CaptureStore
	presence   Presence
	cfg        *config.CaptureConfig
	liveWindow time.Duration
	logger     *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewDetector creates a capture detector
func NewDetector(
	positions PositionStore,
	captures CaptureStore,
	presence Presence,
	cfg *config.CaptureConfig,
	liveWindow time.Duration,
	rng *rand.Rand,
	logger *slog.Logger,
) *Detector {
	return &Detector{
		positions:  positions,
		captures:   captures,
		presence:   presence,
		cfg:        cfg,
		liveWindow: liveWindow,
		rng:        rng,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// gameLock returns the mutex serializing detection for one game. Different
// games detect in parallel; a second tick for the same game waits.
func (d *Detector) gameLock(gameID string) *sync.Mutex {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	mu, ok := d.locks[gameID]
	if !ok {
		mu = &sync.Mutex{}
		d.locks[gameID] = mu
	}
	return mu
}

// DetectGame runs one detection pass for a game at tick time now and returns
// the captures committed this pass. Out-of-range and cooling-down pairs are
// silent no-ops. Cooldown is evaluated against the captures committed as of
// tick start, so a capture committed during this pass does not change other
// pairs' eligibility.
func (d *Detector) DetectGame(ctx context.Context, roster *domain.Roster, now time.Time) ([]domain.Capture, error) {
	mu := d.gameLock(roster.Game.ID)
	mu.Lock()
	defer mu.Unlock()

	snap, err := d.positions.Snapshot(ctx, roster.PlayerIDs())
	if err != nil {
		return nil, fmt.Errorf("snapshotting positions: %w", err)
	}

	hunters := d.livePositions(roster.Hunters, snap, now)
	hunted := d.livePositions(roster.Hunted, snap, now)
	if len(hunters) == 0 || len(hunted) == 0 {
		return nil, nil
	}

	onCooldown, err := d.cooldownPairs(ctx, roster.Game.ID, now)
	if err != nil {
		return nil, err
	}

	var committed []domain.Capture
	for hunterID, hunterPos := range hunters {
		targetID, _, dist, ok := nearest(hunterPos.Lat, hunterPos.Lng, hunterID, hunted)
		if !ok {
			continue
		}
		if dist > d.cfg.RadiusMeters {
			continue
		}
		if onCooldown[pairKey(hunterID, targetID)] {
			continue
		}
		if d.draw() >= d.cfg.Probability {
			// In range but the attempt failed; try again next tick.
			continue
		}

		capture := domain.Capture{
			ID:             uuid.New().String(),
			GameID:         roster.Game.ID,
			HunterID:       hunterID,
			HuntedID:       targetID,
			DistanceMeters: dist,
			CapturedAt:     now,
		}
		if err := d.captures.RecordCapture(ctx, capture); err != nil {
			return committed, fmt.Errorf("recording capture: %w", err)
		}
		d.logger.Info("capture committed",
			"game_id", roster.Game.ID,
			"hunter_id", hunterID,
			"hunted_id", targetID,
			"distance_m", dist,
		)
		committed = append(committed, capture)
	}
	return committed, nil
}

// livePositions filters snapshot entries down to players that were active
// within the simulation window. Stale real players drop out of both sides of
// the pursuit until they report again.
func (d *Detector) livePositions(players []domain.Player, snap map[string]domain.Position, now time.Time) map[string]domain.Position {
	out := make(map[string]domain.Position, len(players))
	for _, p := range players {
		pos, ok := snap[p.ID]
		if !ok {
			continue
		}
		if !d.presence.IsOnline(p.ID, now, d.liveWindow) {
			continue
		}
		out[p.ID] = pos
	}
	return out
}

// cooldownPairs loads the (hunter, hunted) pairs captured within the cooldown
// window before now.
func (d *Detector) cooldownPairs(ctx context.Context, gameID string, now time.Time) (map[string]bool, error) {
	recent, err := d.captures.CapturesSince(ctx, gameID, now.Add(-d.cfg.Cooldown))
	if err != nil {
		return nil, fmt.Errorf("loading recent captures: %w", err)
	}
	pairs := make(map[string]bool, len(recent))
	for _, c := range recent {
		pairs[pairKey(c.HunterID, c.HuntedID)] = true
	}
	return pairs, nil
}

// draw returns a uniform value in [0,100)
func (d *Detector) draw() int {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.rng.Intn(100)
}

func pairKey(hunterID, huntedID string) string {
	return hunterID + "/" + huntedID
}
