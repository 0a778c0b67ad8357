package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manhunt-engine/internal/domain"
)

// Lifecycle owns the waiting -> active -> ended state machine and winner
// assignment.
type Lifecycle struct {
	games    GameStore
	captures CaptureStore
	logger   *slog.Logger
}

// NewLifecycle creates a lifecycle manager
func NewLifecycle(games GameStore, captures CaptureStore, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		games:    games,
		captures: captures,
		logger:   logger,
	}
}

// Start activates a waiting game and stamps started_at
func (l *Lifecycle) Start(ctx context.Context, game *domain.Game, now time.Time) error {
	if game.Status != domain.StatusWaiting {
		return fmt.Errorf("%w: cannot start game in status %q", domain.ErrInvariantViolation, game.Status)
	}
	if err := l.games.StartGame(ctx, game.ID, now); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	l.logger.Info("game started", "game_id", game.ID)
	return nil
}

// CheckEnd transitions an active game to ended when every hunted player has
// at least one capture recorded against it. Returns true when the game ended
// on this call.
func (l *Lifecycle) CheckEnd(ctx context.Context, roster *domain.Roster, now time.Time) (bool, error) {
	if roster.Game.Status != domain.StatusActive {
		return false, nil
	}
	if len(roster.Hunted) == 0 {
		// A roster with no hunted players has nobody to win over.
		return false, nil
	}

	victims, err := l.captures.CapturedPlayerIDs(ctx, roster.Game.ID)
	if err != nil {
		return false, fmt.Errorf("loading captured players: %w", err)
	}
	captured := make(map[string]bool, len(victims))
	for _, id := range victims {
		captured[id] = true
	}

	for _, p := range roster.Hunted {
		if !captured[p.ID] {
			return false, nil
		}
	}

	if err := l.games.EndGame(ctx, roster.Game.ID, roster.HunterTeam.ID, now); err != nil {
		return false, fmt.Errorf("ending game: %w", err)
	}
	l.logger.Info("game ended",
		"game_id", roster.Game.ID,
		"winner_team_id", roster.HunterTeam.ID,
		"hunted_count", len(roster.Hunted),
	)
	return true, nil
}

// Reset clears an ended game back to active for another round: captures are
// deleted and started_at is refreshed. Used by the self-resetting demo mode.
func (l *Lifecycle) Reset(ctx context.Context, game *domain.Game, now time.Time) error {
	if err := l.games.ResetGame(ctx, game.ID, now); err != nil {
		return fmt.Errorf("resetting game: %w", err)
	}
	l.logger.Info("game reset", "game_id", game.ID)
	return nil
}
