package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/manhunt-engine/internal/domain"
)

func recordCapture(t *testing.T, captures *memCaptureStore, gameID, hunterID, huntedID string, at time.Time) {
	t.Helper()
	err := captures.RecordCapture(context.Background(), domain.Capture{
		ID:         uuid.New().String(),
		GameID:     gameID,
		HunterID:   hunterID,
		HuntedID:   huntedID,
		CapturedAt: at,
	})
	if err != nil {
		t.Fatalf("record capture: %v", err)
	}
}

func TestCheckEndOnlyWhenAllHuntedCaptured(t *testing.T) {
	ctx := context.Background()
	captures := &memCaptureStore{}
	games := newMemGameStore(captures)
	l := NewLifecycle(games, captures, testLogger())

	roster := makeRoster(1, 3)
	games.put(&roster.Game)
	now := time.Now()

	// Two of three captured: still active.
	recordCapture(t, captures, roster.Game.ID, "h0", "v0", now)
	recordCapture(t, captures, roster.Game.ID, "h0", "v1", now)

	ended, err := l.CheckEnd(ctx, roster, now)
	if err != nil {
		t.Fatalf("check end: %v", err)
	}
	if ended {
		t.Fatal("game ended with an uncaptured hunted player")
	}
	if g := games.get(roster.Game.ID); g.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", g.Status)
	}

	// Third capture closes the game.
	endTime := now.Add(time.Minute)
	recordCapture(t, captures, roster.Game.ID, "h0", "v2", endTime)
	ended, err = l.CheckEnd(ctx, roster, endTime)
	if err != nil {
		t.Fatalf("check end: %v", err)
	}
	if !ended {
		t.Fatal("game should end once every hunted player is captured")
	}

	g := games.get(roster.Game.ID)
	if g.Status != domain.StatusEnded {
		t.Fatalf("status = %s, want ended", g.Status)
	}
	if g.EndedAt == nil || !g.EndedAt.Equal(endTime) {
		t.Fatalf("ended_at = %v, want %v", g.EndedAt, endTime)
	}
	if g.WinnerTeamID == nil || *g.WinnerTeamID != roster.HunterTeam.ID {
		t.Fatalf("winner_team_id = %v, want %s", g.WinnerTeamID, roster.HunterTeam.ID)
	}
}

func TestCheckEndCountsRepeatCapturesOnce(t *testing.T) {
	ctx := context.Background()
	captures := &memCaptureStore{}
	games := newMemGameStore(captures)
	l := NewLifecycle(games, captures, testLogger())

	roster := makeRoster(1, 2)
	games.put(&roster.Game)
	now := time.Now()

	// v0 captured twice; v1 never.
	recordCapture(t, captures, roster.Game.ID, "h0", "v0", now)
	recordCapture(t, captures, roster.Game.ID, "h0", "v0", now.Add(3*time.Minute))

	ended, err := l.CheckEnd(ctx, roster, now.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("check end: %v", err)
	}
	if ended {
		t.Fatal("repeated captures of one player must not satisfy the win condition")
	}
}

func TestCheckEndIgnoresNonActiveGames(t *testing.T) {
	ctx := context.Background()
	captures := &memCaptureStore{}
	games := newMemGameStore(captures)
	l := NewLifecycle(games, captures, testLogger())

	for _, status := range []domain.GameStatus{domain.StatusWaiting, domain.StatusEnded} {
		roster := makeRoster(1, 1)
		roster.Game.Status = status
		games.put(&roster.Game)
		recordCapture(t, captures, roster.Game.ID, "h0", "v0", time.Now())

		ended, err := l.CheckEnd(ctx, roster, time.Now())
		if err != nil {
			t.Fatalf("check end (%s): %v", status, err)
		}
		if ended {
			t.Fatalf("game in status %s must not transition via end check", status)
		}
	}
}

func TestCheckEndEmptyHuntedRoster(t *testing.T) {
	ctx := context.Background()
	captures := &memCaptureStore{}
	games := newMemGameStore(captures)
	l := NewLifecycle(games, captures, testLogger())

	roster := makeRoster(2, 0)
	games.put(&roster.Game)

	ended, err := l.CheckEnd(ctx, roster, time.Now())
	if err != nil {
		t.Fatalf("check end: %v", err)
	}
	if ended {
		t.Fatal("a game with no hunted players must not end")
	}
}

func TestStartOnlyFromWaiting(t *testing.T) {
	ctx := context.Background()
	captures := &memCaptureStore{}
	games := newMemGameStore(captures)
	l := NewLifecycle(games, captures, testLogger())

	roster := makeRoster(1, 1)
	roster.Game.Status = domain.StatusWaiting
	games.put(&roster.Game)
	now := time.Now()

	if err := l.Start(ctx, &roster.Game, now); err != nil {
		t.Fatalf("start: %v", err)
	}
	g := games.get(roster.Game.ID)
	if g.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", g.Status)
	}
	if g.StartedAt == nil || !g.StartedAt.Equal(now) {
		t.Fatalf("started_at = %v, want %v", g.StartedAt, now)
	}

	// Starting an already active game violates an invariant.
	active := games.get(roster.Game.ID)
	err := l.Start(ctx, &active, now)
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("err = %v, want ErrInvariantViolation", err)
	}
}

func TestResetClearsCapturesAndReactivates(t *testing.T) {
	ctx := context.Background()
	captures := &memCaptureStore{}
	games := newMemGameStore(captures)
	l := NewLifecycle(games, captures, testLogger())

	roster := makeRoster(1, 1)
	games.put(&roster.Game)
	t0 := time.Now()

	recordCapture(t, captures, roster.Game.ID, "h0", "v0", t0)
	if ended, err := l.CheckEnd(ctx, roster, t0); err != nil || !ended {
		t.Fatalf("setup end failed: ended=%v err=%v", ended, err)
	}

	resetAt := t0.Add(time.Minute)
	endedGame := games.get(roster.Game.ID)
	if err := l.Reset(ctx, &endedGame, resetAt); err != nil {
		t.Fatalf("reset: %v", err)
	}

	g := games.get(roster.Game.ID)
	if g.Status != domain.StatusActive {
		t.Fatalf("status after reset = %s, want active", g.Status)
	}
	if g.StartedAt == nil || !g.StartedAt.Equal(resetAt) {
		t.Fatalf("started_at after reset = %v, want %v", g.StartedAt, resetAt)
	}
	if g.EndedAt != nil || g.WinnerTeamID != nil {
		t.Fatal("reset must clear ended_at and winner_team_id")
	}
	if n := len(captures.all()); n != 0 {
		t.Fatalf("reset left %d captures behind", n)
	}
}
