package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/geo"
	"github.com/manhunt-engine/internal/position"
	"github.com/manhunt-engine/internal/presence"
)

func newTestSimulator(store PositionStore, tracker *presence.Tracker, seed int64) *Simulator {
	return NewSimulator(store, tracker, movementConfig(), rand.New(rand.NewSource(seed)), testLogger())
}

func TestStrategyForRole(t *testing.T) {
	if StrategyForRole(domain.RoleHunter) != Pursue {
		t.Fatal("hunter role should pursue")
	}
	if StrategyForRole(domain.RoleHunted) != Flee {
		t.Fatal("hunted role should flee")
	}
	if StrategyForRole(domain.Role("")) != Wander {
		t.Fatal("unknown role should wander")
	}
}

func TestSeedWithinSpawnRadius(t *testing.T) {
	ctx := context.Background()
	store := position.NewStore()
	tracker := presence.NewTracker()
	sim := newTestSimulator(store, tracker, 3)
	cfg := movementConfig()

	roster := makeRoster(1, 1)
	now := time.Now()

	if err := sim.MoveBots(ctx, roster, now); err != nil {
		t.Fatalf("move: %v", err)
	}

	for _, id := range []string{"h0", "v0"} {
		pos, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("bot %s was not seeded: %v", id, err)
		}
		d := geo.DistanceMeters(cfg.SpawnLat, cfg.SpawnLng, pos.Lat, pos.Lng)
		if d > cfg.SpawnRadius {
			t.Fatalf("bot %s seeded %f m from center, spawn radius is %f", id, d, cfg.SpawnRadius)
		}
		if !tracker.IsOnline(id, now, time.Minute) {
			t.Fatalf("bot %s not marked active after seeding", id)
		}
	}
}

func TestPursueClosesDistance(t *testing.T) {
	ctx := context.Background()
	store := position.NewStore()
	tracker := presence.NewTracker()
	sim := newTestSimulator(store, tracker, 5)

	roster := makeRoster(1, 1)
	roster.Hunted[0].IsBot = false // fixed target
	now := time.Now()

	placeActive(t, store, tracker, "h0", 48.2082, 16.3738, now)
	placeActive(t, store, tracker, "v0", 48.2127, 16.3738, now) // ~500 m north

	before := botTargetDistance(t, store, "h0", "v0")
	if err := sim.MoveBots(ctx, roster, now.Add(5*time.Second)); err != nil {
		t.Fatalf("move: %v", err)
	}
	after := botTargetDistance(t, store, "h0", "v0")

	if after >= before {
		t.Fatalf("pursuit did not close distance: before=%f after=%f", before, after)
	}
	// The step is bounded by max step plus jitter.
	cfg := movementConfig()
	if before-after > cfg.MaxStepMeters+cfg.JitterMeters {
		t.Fatalf("pursuit step %f m exceeds max %f + jitter %f",
			before-after, cfg.MaxStepMeters, cfg.JitterMeters)
	}
}

func TestFleeIncreasesDistanceInsideThreat(t *testing.T) {
	ctx := context.Background()
	store := position.NewStore()
	tracker := presence.NewTracker()
	sim := newTestSimulator(store, tracker, 5)

	roster := makeRoster(1, 1)
	roster.Hunters[0].IsBot = false // fixed threat
	now := time.Now()

	placeActive(t, store, tracker, "h0", 48.2082, 16.3738, now)
	placeActive(t, store, tracker, "v0", 48.2091, 16.3738, now) // ~100 m north

	before := botTargetDistance(t, store, "v0", "h0")
	if err := sim.MoveBots(ctx, roster, now.Add(5*time.Second)); err != nil {
		t.Fatalf("move: %v", err)
	}
	after := botTargetDistance(t, store, "v0", "h0")

	if after <= before {
		t.Fatalf("flee step did not increase distance: before=%f after=%f", before, after)
	}
}

func TestFleeWandersOutsideThreat(t *testing.T) {
	ctx := context.Background()
	store := position.NewStore()
	tracker := presence.NewTracker()
	sim := newTestSimulator(store, tracker, 5)
	cfg := movementConfig()

	roster := makeRoster(1, 1)
	roster.Hunters[0].IsBot = false
	now := time.Now()

	placeActive(t, store, tracker, "h0", 48.2082, 16.3738, now)
	placeActive(t, store, tracker, "v0", 48.2127, 16.3738, now) // ~500 m, beyond threat

	start, _ := store.Get(ctx, "v0")
	if err := sim.MoveBots(ctx, roster, now.Add(5*time.Second)); err != nil {
		t.Fatalf("move: %v", err)
	}
	end, _ := store.Get(ctx, "v0")

	moved := geo.DistanceMeters(start.Lat, start.Lng, end.Lat, end.Lng)
	if moved > cfg.WanderStepMeters {
		t.Fatalf("unthreatened hunted bot moved %f m, wander cap is %f", moved, cfg.WanderStepMeters)
	}
}

func TestMovementNeverLeavesValidRanges(t *testing.T) {
	ctx := context.Background()
	store := position.NewStore()
	tracker := presence.NewTracker()

	// Spawn on top of the pole at the date line to force clamping.
	cfg := movementConfig()
	cfg.SpawnLat = 89.9999
	cfg.SpawnLng = 179.9999
	cfg.MaxStepMeters = 5000
	cfg.WanderStepMeters = 5000
	sim := NewSimulator(store, tracker, cfg, rand.New(rand.NewSource(9)), testLogger())

	roster := makeRoster(2, 2)
	now := time.Now()
	for tick := 0; tick < 20; tick++ {
		now = now.Add(5 * time.Second)
		if err := sim.MoveBots(ctx, roster, now); err != nil {
			t.Fatalf("move tick %d: %v", tick, err)
		}
		for _, id := range roster.PlayerIDs() {
			pos, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("get %s: %v", id, err)
			}
			if !domain.ValidCoordinate(pos.Lat, pos.Lng) {
				t.Fatalf("bot %s at invalid coordinate (%f, %f)", id, pos.Lat, pos.Lng)
			}
		}
	}
}

func TestRealPlayersAreNotMoved(t *testing.T) {
	ctx := context.Background()
	store := position.NewStore()
	tracker := presence.NewTracker()
	sim := newTestSimulator(store, tracker, 5)

	roster := makeRoster(1, 1)
	roster.Hunters[0].IsBot = false
	now := time.Now()

	placeActive(t, store, tracker, "h0", 48.2082, 16.3738, now)
	placeActive(t, store, tracker, "v0", 48.2084, 16.3740, now)

	if err := sim.MoveBots(ctx, roster, now.Add(5*time.Second)); err != nil {
		t.Fatalf("move: %v", err)
	}

	pos, err := store.Get(ctx, "h0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pos.Lat != 48.2082 || pos.Lng != 16.3738 {
		t.Fatalf("real player moved to (%f, %f)", pos.Lat, pos.Lng)
	}
}

// failingStore wraps a PositionStore and fails upserts for one player
type failingStore struct {
	PositionStore
	failID string
}

func (f *failingStore) Upsert(ctx context.Context, playerID string, lat, lng float64, now time.Time) error {
	if playerID == f.failID {
		return errors.New("simulated store failure")
	}
	return f.PositionStore.Upsert(ctx, playerID, lat, lng, now)
}

func TestOneBotFailureDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	inner := position.NewStore()
	store := &failingStore{PositionStore: inner, failID: "h0"}
	tracker := presence.NewTracker()
	sim := newTestSimulator(store, tracker, 5)

	roster := makeRoster(2, 1)
	now := time.Now()

	if err := sim.MoveBots(ctx, roster, now); err != nil {
		t.Fatalf("move returned error despite per-bot isolation: %v", err)
	}

	// h0 failed, the rest were still seeded.
	if _, err := inner.Get(ctx, "h0"); !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("h0 unexpectedly has a position: %v", err)
	}
	for _, id := range []string{"h1", "v0"} {
		if _, err := inner.Get(ctx, id); err != nil {
			t.Fatalf("bot %s was not moved: %v", id, err)
		}
	}
}

func botTargetDistance(t *testing.T, store *position.Store, a, b string) float64 {
	t.Helper()
	ctx := context.Background()
	pa, err := store.Get(ctx, a)
	if err != nil {
		t.Fatalf("get %s: %v", a, err)
	}
	pb, err := store.Get(ctx, b)
	if err != nil {
		t.Fatalf("get %s: %v", b, err)
	}
	return geo.DistanceMeters(pa.Lat, pa.Lng, pb.Lat, pb.Lng)
}
