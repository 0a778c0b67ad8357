package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/manhunt-engine/internal/domain"
)

func TestUpsertThenGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Upsert(ctx, "p1", 48.2082, 16.3738, now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lat != 48.2082 || got.Lng != 16.3738 {
		t.Fatalf("got (%f, %f), want (48.2082, 16.3738)", got.Lat, got.Lng)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, now)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	for i := 0; i < 2; i++ {
		if err := s.Upsert(ctx, "p1", 10, 20, now); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lat != 10 || got.Lng != 20 || !got.UpdatedAt.Equal(now) {
		t.Fatalf("repeated upsert changed observable state: %+v", got)
	}
}

func TestUpsertReplacesPrior(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	t0 := time.Now()

	if err := s.Upsert(ctx, "p1", 10, 20, t0); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.Upsert(ctx, "p1", 11, 21, t0.Add(time.Second)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, _ := s.Get(ctx, "p1")
	if got.Lat != 11 || got.Lng != 21 {
		t.Fatalf("got (%f, %f), want replacement (11, 21)", got.Lat, got.Lng)
	}
}

func TestUpsertRejectsInvalidCoordinates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	cases := []struct{ lat, lng float64 }{
		{91, 0},
		{-91, 0},
		{0, 181},
		{0, -181},
	}
	for _, tc := range cases {
		err := s.Upsert(ctx, "p1", tc.lat, tc.lng, time.Now())
		if !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Fatalf("Upsert(%f, %f) err = %v, want ErrInvalidCoordinate", tc.lat, tc.lng, err)
		}
	}

	// Nothing was persisted.
	if _, err := s.Get(ctx, "p1"); !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("get after rejected upserts err = %v, want ErrPositionNotFound", err)
	}
}

func TestGetUnknownPlayer(t *testing.T) {
	s := NewStore()
	if _, err := s.Get(context.Background(), "ghost"); !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("err = %v, want ErrPositionNotFound", err)
	}
}

func TestRemovePlayer(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "p1", 48.2, 16.3, time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.RemovePlayer(ctx, "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, "p1"); !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("err = %v, want ErrPositionNotFound after removal", err)
	}
	// Removing an unknown player is a no-op
	if err := s.RemovePlayer(ctx, "ghost"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
}

func TestSnapshotOmitsUnknownPlayers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	if err := s.Upsert(ctx, "p1", 1, 2, now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	snap, err := s.Snapshot(ctx, []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("snapshot size = %d, want 1", len(snap))
	}
	if _, ok := snap["p2"]; ok {
		t.Fatal("snapshot should omit players without a position")
	}
}

func TestConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	const writers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := string(rune('a' + w))
			for i := 0; i < rounds; i++ {
				lat := float64(w % 90)
				lng := float64(i % 180)
				if err := s.Upsert(ctx, id, lat, lng, now); err != nil {
					t.Errorf("upsert %s: %v", id, err)
					return
				}
			}
		}(w)
	}

	// Concurrent snapshots must always observe whole positions.
	ids := make([]string, writers)
	for w := 0; w < writers; w++ {
		ids[w] = string(rune('a' + w))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			snap, err := s.Snapshot(ctx, ids)
			if err != nil {
				t.Errorf("snapshot: %v", err)
				return
			}
			for id, p := range snap {
				if p.PlayerID != id {
					t.Errorf("snapshot entry %s holds position of %s", id, p.PlayerID)
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done
}
