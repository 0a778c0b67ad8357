// Package worker runs the periodic simulation loop: move bots, detect
// captures, advance lifecycle, per simulated game.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/engine"
)

// GameSource lists simulated games and resolves their rosters
type GameSource interface {
	ListSimulatedGames(ctx context.Context) ([]domain.Game, error)
	GameRoster(ctx context.Context, gameID string) (*domain.Roster, error)
}

// Broadcaster pushes engine events to live subscribers. Implemented by the
// websocket hub; a nil Broadcaster disables pushes.
type Broadcaster interface {
	BroadcastCapture(gameID string, capture domain.Capture)
	BroadcastGameEnded(gameID, winnerTeamID string)
}

// SimLoop drives the simulation on a fixed period
type SimLoop struct {
	source    GameSource
	mover     *engine.Simulator
	detector  *engine.Detector
	lifecycle *engine.Lifecycle
	cfg       *config.SimulationConfig
	hub       Broadcaster
	logger    *slog.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSimLoop creates a simulation loop
func NewSimLoop(
	source GameSource,
	mover *engine.Simulator,
	detector *engine.Detector,
	lifecycle *engine.Lifecycle,
	cfg *config.SimulationConfig,
	hub Broadcaster,
	logger *slog.Logger,
) *SimLoop {
	return &SimLoop{
		source:    source,
		mover:     mover,
		detector:  detector,
		lifecycle: lifecycle,
		cfg:       cfg,
		hub:       hub,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background simulation loop
func (l *SimLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	l.logger.Info("simulation loop started", "interval", l.cfg.Interval)

	go l.run(ctx)
	return nil
}

// Stop stops the loop, letting any in-flight tick finish first
func (l *SimLoop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	l.logger.Info("simulation loop stopped")
	return nil
}

// IsRunning returns whether the loop is currently running
func (l *SimLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// run is the main loop. A tick runs inline in the select body, so stop and
// context cancellation only take effect between ticks.
func (l *SimLoop) run(ctx context.Context) {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.Tick(ctx, time.Now()); err != nil {
				l.logger.Warn("tick failed, backing off",
					"error", err,
					"backoff", l.cfg.RetryBackoff,
				)
				select {
				case <-ctx.Done():
					return
				case <-l.stopCh:
					return
				case <-time.After(l.cfg.RetryBackoff):
				}
			}
		}
	}
}

// Tick runs one full pass over all simulated games. Per-game failures are
// isolated; only a failure to list the games at all is returned (and treated
// as transient by the loop).
func (l *SimLoop) Tick(ctx context.Context, now time.Time) error {
	games, err := l.source.ListSimulatedGames(ctx)
	if err != nil {
		return fmt.Errorf("listing simulated games: %w", err)
	}

	for _, game := range games {
		tickCtx, cancel := context.WithTimeout(ctx, l.cfg.TickDeadline)
		err := l.tickGame(tickCtx, game, now)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			l.logger.Warn("game tick exceeded deadline, deferring to next tick",
				"game_id", game.ID,
				"deadline", l.cfg.TickDeadline,
			)
		case errors.Is(err, domain.ErrInvariantViolation):
			l.logger.Error("game state defect, skipping tick",
				"game_id", game.ID,
				"error", err,
			)
		default:
			l.logger.Warn("game tick failed",
				"game_id", game.ID,
				"error", err,
			)
		}
	}
	return nil
}

// tickGame advances one game by one tick
func (l *SimLoop) tickGame(ctx context.Context, game domain.Game, now time.Time) error {
	switch game.Status {
	case domain.StatusWaiting:
		if !l.cfg.DemoAutoStart {
			return nil
		}
		return l.lifecycle.Start(ctx, &game, now)

	case domain.StatusEnded:
		if !l.cfg.DemoAutoReset {
			return nil
		}
		if game.EndedAt == nil || now.Sub(*game.EndedAt) < l.cfg.ResetDelay {
			return nil
		}
		return l.lifecycle.Reset(ctx, &game, now)

	case domain.StatusActive:
		roster, err := l.source.GameRoster(ctx, game.ID)
		if err != nil {
			return err
		}

		if err := l.mover.MoveBots(ctx, roster, now); err != nil {
			return err
		}

		captures, err := l.detector.DetectGame(ctx, roster, now)
		if err != nil {
			return err
		}
		if l.hub != nil {
			for _, c := range captures {
				l.hub.BroadcastCapture(game.ID, c)
			}
		}

		ended, err := l.lifecycle.CheckEnd(ctx, roster, now)
		if err != nil {
			return err
		}
		if ended && l.hub != nil {
			l.hub.BroadcastGameEnded(game.ID, roster.HunterTeam.ID)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown game status %q", domain.ErrInvariantViolation, game.Status)
	}
}
