package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/geo"
)

// Strategy selects how a bot moves on a tick
type Strategy int

const (
	// Pursue closes in on the nearest hunted player
	Pursue Strategy = iota
	// Flee moves away from the nearest hunter when threatened, wanders otherwise
	Flee
	// Wander takes a small bounded random step
	Wander
)

// StrategyForRole maps a team role to its movement strategy
func StrategyForRole(role domain.Role) Strategy {
	switch role {
	case domain.RoleHunter:
		return Pursue
	case domain.RoleHunted:
		return Flee
	default:
		return Wander
	}
}

// Simulator produces the next position for each bot-controlled player once
// per tick.
type Simulator struct {
	positions PositionStore
	presence  Presence
	cfg       *config.MovementConfig
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSimulator creates a movement simulator
func NewSimulator(
	positions PositionStore,
	presence Presence,
	cfg *config.MovementConfig,
	rng *rand.Rand,
	logger *slog.Logger,
) *Simulator {
	return &Simulator{
		positions: positions,
		presence:  presence,
		cfg:       cfg,
		rng:       rng,
		logger:    logger,
	}
}

// MoveBots advances every bot in the roster by one tick. A failure moving one
// bot is logged and does not abort movement for the others; only a failed
// position snapshot aborts the whole pass.
func (s *Simulator) MoveBots(ctx context.Context, roster *domain.Roster, now time.Time) error {
	snap, err := s.positions.Snapshot(ctx, roster.PlayerIDs())
	if err != nil {
		return fmt.Errorf("snapshotting positions: %w", err)
	}

	hunterPos := indexPositions(roster.Hunters, snap)
	huntedPos := indexPositions(roster.Hunted, snap)

	for _, p := range roster.Players() {
		if !p.IsBot {
			continue
		}
		var refs map[string]domain.Position
		strategy := StrategyForRole(rosterRole(roster, p))
		switch strategy {
		case Pursue:
			refs = huntedPos
		case Flee:
			refs = hunterPos
		}
		if err := s.moveBot(ctx, p, strategy, snap, refs, now); err != nil {
			s.logger.Warn("bot movement failed",
				"game_id", roster.Game.ID,
				"player_id", p.ID,
				"error", err,
			)
		}
	}
	return nil
}

// moveBot computes and persists one bot's next position
func (s *Simulator) moveBot(
	ctx context.Context,
	p domain.Player,
	strategy Strategy,
	snap map[string]domain.Position,
	refs map[string]domain.Position,
	now time.Time,
) error {
	cur, ok := snap[p.ID]
	if !ok {
		lat, lng := s.seed()
		return s.write(ctx, p.ID, lat, lng, now)
	}

	var lat, lng float64
	switch strategy {
	case Pursue:
		lat, lng = s.pursueStep(cur, refs)
	case Flee:
		lat, lng = s.fleeStep(cur, refs)
	default:
		lat, lng = s.wanderStep(cur)
	}

	lat, lng = geo.Clamp(lat, lng)
	return s.write(ctx, p.ID, lat, lng, now)
}

func (s *Simulator) write(ctx context.Context, playerID string, lat, lng float64, now time.Time) error {
	if err := s.positions.Upsert(ctx, playerID, lat, lng, now); err != nil {
		return err
	}
	// A moved bot counts as driven for the simulation window.
	s.presence.MarkActive(playerID, now)
	return nil
}

// pursueStep closes a bounded fraction of the distance to the nearest hunted
// position, with small random jitter.
func (s *Simulator) pursueStep(cur domain.Position, targets map[string]domain.Position) (float64, float64) {
	_, target, dist, ok := nearest(cur.Lat, cur.Lng, cur.PlayerID, targets)
	if !ok {
		return s.wanderStep(cur)
	}

	step := math.Min(dist*s.cfg.PursuitGain, s.cfg.MaxStepMeters)
	bearing := geo.Bearing(cur.Lat, cur.Lng, target.Lat, target.Lng)
	lat, lng := geo.Offset(cur.Lat, cur.Lng, bearing, step)

	jitterBearing, jitterDist := s.randomHeading(s.cfg.JitterMeters)
	return geo.Offset(lat, lng, jitterBearing, jitterDist)
}

// fleeStep moves directly away from the nearest hunter while inside the
// threat distance, with a larger gain than pursuit. Outside the threat
// distance the bot wanders. No jitter is applied, so an unclamped flee step
// strictly increases the distance to the hunter.
func (s *Simulator) fleeStep(cur domain.Position, hunters map[string]domain.Position) (float64, float64) {
	_, threat, dist, ok := nearest(cur.Lat, cur.Lng, cur.PlayerID, hunters)
	if !ok || dist >= s.cfg.ThreatMeters {
		return s.wanderStep(cur)
	}

	step := math.Min(dist*s.cfg.FlightGain, s.cfg.MaxStepMeters)
	away := geo.Bearing(threat.Lat, threat.Lng, cur.Lat, cur.Lng)
	return geo.Offset(cur.Lat, cur.Lng, away, step)
}

// wanderStep takes a small random step
func (s *Simulator) wanderStep(cur domain.Position) (float64, float64) {
	bearing, dist := s.randomHeading(s.cfg.WanderStepMeters)
	return geo.Offset(cur.Lat, cur.Lng, bearing, dist)
}

// seed picks a uniformly random point within the spawn radius of the
// configured center.
func (s *Simulator) seed() (float64, float64) {
	s.rngMu.Lock()
	bearing := s.rng.Float64() * 2 * math.Pi
	// sqrt keeps the density uniform over the disc area
	dist := s.cfg.SpawnRadius * math.Sqrt(s.rng.Float64())
	s.rngMu.Unlock()

	lat, lng := geo.Offset(s.cfg.SpawnLat, s.cfg.SpawnLng, bearing, dist)
	return geo.Clamp(lat, lng)
}

// randomHeading returns a random bearing and a random distance in [0, max)
func (s *Simulator) randomHeading(max float64) (float64, float64) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() * 2 * math.Pi, s.rng.Float64() * max
}

func indexPositions(players []domain.Player, snap map[string]domain.Position) map[string]domain.Position {
	out := make(map[string]domain.Position, len(players))
	for _, p := range players {
		if pos, ok := snap[p.ID]; ok {
			out[p.ID] = pos
		}
	}
	return out
}

func rosterRole(roster *domain.Roster, p domain.Player) domain.Role {
	if p.TeamID == roster.HunterTeam.ID {
		return domain.RoleHunter
	}
	return domain.RoleHunted
}
