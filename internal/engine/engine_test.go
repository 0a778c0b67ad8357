package engine

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/position"
	"github.com/manhunt-engine/internal/presence"
)

// memCaptureStore is an in-memory CaptureStore for tests
type memCaptureStore struct {
	mu       sync.Mutex
	captures []domain.Capture
}

func (m *memCaptureStore) RecordCapture(ctx context.Context, c domain.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, c)
	return nil
}

func (m *memCaptureStore) CapturesSince(ctx context.Context, gameID string, since time.Time) ([]domain.Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Capture
	for _, c := range m.captures {
		if c.GameID == gameID && !c.CapturedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCaptureStore) CapturedPlayerIDs(ctx context.Context, gameID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, c := range m.captures {
		if c.GameID == gameID && !seen[c.HuntedID] {
			seen[c.HuntedID] = true
			out = append(out, c.HuntedID)
		}
	}
	return out, nil
}

func (m *memCaptureStore) all() []domain.Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Capture(nil), m.captures...)
}

func (m *memCaptureStore) deleteGame(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.captures[:0]
	for _, c := range m.captures {
		if c.GameID != gameID {
			kept = append(kept, c)
		}
	}
	m.captures = kept
}

// memGameStore is an in-memory GameStore for tests
type memGameStore struct {
	mu       sync.Mutex
	games    map[string]*domain.Game
	captures *memCaptureStore
}

func newMemGameStore(captures *memCaptureStore) *memGameStore {
	return &memGameStore{
		games:    make(map[string]*domain.Game),
		captures: captures,
	}
}

func (m *memGameStore) put(g *domain.Game) {
	m.mu.Lock()
	m.games[g.ID] = g
	m.mu.Unlock()
}

func (m *memGameStore) get(id string) domain.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.games[id]
}

func (m *memGameStore) StartGame(ctx context.Context, gameID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return domain.ErrGameNotFound
	}
	g.Status = domain.StatusActive
	started := now
	g.StartedAt = &started
	return nil
}

func (m *memGameStore) EndGame(ctx context.Context, gameID, winnerTeamID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return domain.ErrGameNotFound
	}
	g.Status = domain.StatusEnded
	ended := now
	g.EndedAt = &ended
	winner := winnerTeamID
	g.WinnerTeamID = &winner
	return nil
}

func (m *memGameStore) ResetGame(ctx context.Context, gameID string, now time.Time) error {
	m.mu.Lock()
	g, ok := m.games[gameID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrGameNotFound
	}
	g.Status = domain.StatusActive
	started := now
	g.StartedAt = &started
	g.EndedAt = nil
	g.WinnerTeamID = nil
	m.mu.Unlock()

	m.captures.deleteGame(gameID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeRoster builds an active game with the given hunter and hunted players.
// Player IDs are h0, h1, ... and v0, v1, ...; all players are bots unless the
// test flips IsBot.
func makeRoster(hunters, hunted int) *domain.Roster {
	game := domain.Game{
		ID:     "game-1",
		Name:   "test game",
		Status: domain.StatusActive,
	}
	r := &domain.Roster{
		Game:       game,
		HunterTeam: domain.Team{ID: "team-hunter", GameID: game.ID, Role: domain.RoleHunter},
		HuntedTeam: domain.Team{ID: "team-hunted", GameID: game.ID, Role: domain.RoleHunted},
	}
	for i := 0; i < hunters; i++ {
		r.Hunters = append(r.Hunters, domain.Player{
			ID:     "h" + string(rune('0'+i)),
			TeamID: r.HunterTeam.ID,
			GameID: game.ID,
			IsBot:  true,
		})
	}
	for i := 0; i < hunted; i++ {
		r.Hunted = append(r.Hunted, domain.Player{
			ID:     "v" + string(rune('0'+i)),
			TeamID: r.HuntedTeam.ID,
			GameID: game.ID,
			IsBot:  true,
		})
	}
	return r
}

// placeActive stores a position and marks the player active
func placeActive(t *testing.T, store *position.Store, tracker *presence.Tracker, playerID string, lat, lng float64, now time.Time) {
	t.Helper()
	if err := store.Upsert(context.Background(), playerID, lat, lng, now); err != nil {
		t.Fatalf("upsert %s: %v", playerID, err)
	}
	tracker.MarkActive(playerID, now)
}

func captureConfig() *config.CaptureConfig {
	return &config.CaptureConfig{
		RadiusMeters: 50,
		Cooldown:     120 * time.Second,
		Probability:  30,
	}
}

func movementConfig() *config.MovementConfig {
	return &config.MovementConfig{
		PursuitGain:      0.25,
		FlightGain:       0.4,
		MaxStepMeters:    60,
		JitterMeters:     3,
		WanderStepMeters: 15,
		ThreatMeters:     200,
		SpawnLat:         48.2082,
		SpawnLng:         16.3738,
		SpawnRadius:      500,
	}
}

func newTestDetector(store *position.Store, tracker *presence.Tracker, captures *memCaptureStore, cfg *config.CaptureConfig, seed int64) *Detector {
	return NewDetector(store, captures, tracker, cfg, 120*time.Second, rand.New(rand.NewSource(seed)), testLogger())
}
