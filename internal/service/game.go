package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/engine"
	"github.com/manhunt-engine/internal/postgres"
	"github.com/manhunt-engine/internal/presence"
	"github.com/manhunt-engine/internal/websocket"
)

// NearbySearcher answers radius queries around a player's last position
type NearbySearcher interface {
	Nearby(ctx context.Context, playerID string, radiusMeters float64, limit int) ([]domain.NearbyPlayer, error)
}

// GameService provides business logic for game and position operations
type GameService struct {
	positions engine.PositionStore
	nearby    NearbySearcher
	repo      *postgres.Repository
	presence  *presence.Tracker
	lifecycle *engine.Lifecycle
	hub       *websocket.Hub
	cfg       *config.PresenceConfig
	logger    *slog.Logger
}

// NewGameService creates a new game service. hub and nearby may be nil when
// the corresponding surface is disabled.
func NewGameService(
	positions engine.PositionStore,
	nearby NearbySearcher,
	repo *postgres.Repository,
	tracker *presence.Tracker,
	lifecycle *engine.Lifecycle,
	hub *websocket.Hub,
	cfg *config.PresenceConfig,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		positions: positions,
		nearby:    nearby,
		repo:      repo,
		presence:  tracker,
		lifecycle: lifecycle,
		hub:       hub,
		cfg:       cfg,
		logger:    logger,
	}
}

// newJoinCode returns a short uppercase code for games and teams
func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
}

// IngestPosition validates and stores a position report. The durable last
// seen stamp is best effort; the live position and presence update are not.
func (s *GameService) IngestPosition(ctx context.Context, report domain.PositionReport) error {
	if report.PlayerID == "" {
		return fmt.Errorf("%w: player_id required", domain.ErrInvalidRequest)
	}
	if !domain.ValidCoordinate(report.Lat, report.Lng) {
		return fmt.Errorf("player %s at (%f, %f): %w", report.PlayerID, report.Lat, report.Lng, domain.ErrInvalidCoordinate)
	}

	player, err := s.repo.GetPlayer(ctx, report.PlayerID)
	if err != nil {
		return fmt.Errorf("resolving player: %w", err)
	}

	now := report.RecordedAt
	if now.IsZero() {
		now = time.Now()
	}

	if err := s.positions.Upsert(ctx, player.ID, report.Lat, report.Lng, now); err != nil {
		return fmt.Errorf("storing position: %w", err)
	}
	s.presence.MarkActive(player.ID, now)

	if err := s.repo.TouchPlayerLastSeen(ctx, player.ID, now); err != nil {
		s.logger.Warn("failed to update last seen", "player_id", player.ID, "error", err)
		// Don't fail the report if the durable stamp lags
	}

	if s.hub != nil {
		s.hub.BroadcastPosition(player.GameID, domain.Position{
			PlayerID:  player.ID,
			Lat:       report.Lat,
			Lng:       report.Lng,
			UpdatedAt: now,
		})
	}
	return nil
}

// IngestPositionBatch stores multiple position reports. A failed report is
// logged and skipped so one bad entry never blocks the rest of the batch.
func (s *GameService) IngestPositionBatch(ctx context.Context, batch domain.BatchPositionReport) error {
	for _, report := range batch.Positions {
		if err := s.IngestPosition(ctx, report); err != nil {
			s.logger.Error("failed to ingest position in batch",
				"player_id", report.PlayerID,
				"error", err,
			)
			// Continue processing other reports
		}
	}
	return nil
}

// Nearby returns players within radiusMeters of the given player
func (s *GameService) Nearby(ctx context.Context, playerID string, radiusMeters float64, limit int) ([]domain.NearbyPlayer, error) {
	if s.nearby == nil {
		return nil, fmt.Errorf("nearby search not configured: %w", domain.ErrInternalError)
	}
	if _, err := s.repo.GetPlayer(ctx, playerID); err != nil {
		return nil, fmt.Errorf("resolving player: %w", err)
	}
	return s.nearby.Nearby(ctx, playerID, radiusMeters, limit)
}

// CreateGame creates a new game in the waiting state
func (s *GameService) CreateGame(ctx context.Context, req domain.CreateGameRequest) (*domain.Game, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidRequest)
	}

	game := domain.Game{
		ID:            uuid.New().String(),
		Name:          req.Name,
		JoinCode:      newJoinCode(),
		Status:        domain.StatusWaiting,
		PhotoInterval: req.PhotoInterval,
		Simulated:     req.Simulated,
	}
	if err := s.repo.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	s.logger.Info("game created",
		"game_id", game.ID,
		"name", game.Name,
		"simulated", game.Simulated,
	)
	return &game, nil
}

// GetGame retrieves a game by ID
func (s *GameService) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	return s.repo.GetGame(ctx, gameID)
}

// ListGames retrieves all games
func (s *GameService) ListGames(ctx context.Context) ([]domain.Game, error) {
	return s.repo.ListGames(ctx)
}

// positionRemover is the optional cleanup capability of a position store
type positionRemover interface {
	RemovePlayer(ctx context.Context, playerID string) error
}

// DeleteGame removes a game with its teams, players and captures. Live
// positions of its players are cleaned up best effort.
func (s *GameService) DeleteGame(ctx context.Context, gameID string) error {
	players, err := s.repo.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGame(ctx, gameID); err != nil {
		return err
	}

	remover, removable := s.positions.(positionRemover)
	for _, p := range players {
		if removable {
			if err := remover.RemovePlayer(ctx, p.ID); err != nil {
				s.logger.Warn("failed to remove live position", "player_id", p.ID, "error", err)
			}
		}
		s.presence.Forget(p.ID)
	}

	s.logger.Info("game deleted", "game_id", gameID, "players", len(players))
	return nil
}

// CreateTeam adds a team to a game. A game holds at most one hunted team;
// a second one is rejected before it reaches the database.
func (s *GameService) CreateTeam(ctx context.Context, gameID string, req domain.CreateTeamRequest) (*domain.Team, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidRequest)
	}
	if req.Role != domain.RoleHunter && req.Role != domain.RoleHunted {
		return nil, fmt.Errorf("%w: role must be hunter or hunted", domain.ErrInvalidRequest)
	}

	if _, err := s.repo.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	if req.Role == domain.RoleHunted {
		count, err := s.repo.CountHuntedTeams(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, domain.ErrHuntedTeamExists
		}
	}

	team := domain.Team{
		ID:       uuid.New().String(),
		GameID:   gameID,
		Name:     req.Name,
		Role:     req.Role,
		JoinCode: newJoinCode(),
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}

	s.logger.Info("team created",
		"team_id", team.ID,
		"game_id", gameID,
		"role", team.Role,
	)
	return &team, nil
}

// ListTeams retrieves the teams of a game
func (s *GameService) ListTeams(ctx context.Context, gameID string) ([]domain.Team, error) {
	if _, err := s.repo.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.repo.ListTeams(ctx, gameID)
}

// JoinTeam registers a device on a team by join code. Joining is only open
// while the game is waiting. The bot tag is derived from the device identity
// prefix at registration and never changes afterwards.
func (s *GameService) JoinTeam(ctx context.Context, req domain.JoinRequest) (*domain.Player, error) {
	if req.JoinCode == "" || req.DeviceID == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: join_code, device_id and name required", domain.ErrInvalidRequest)
	}

	team, err := s.repo.GetTeamByJoinCode(ctx, req.JoinCode)
	if err != nil {
		return nil, err
	}
	game, err := s.repo.GetGame(ctx, team.GameID)
	if err != nil {
		return nil, err
	}
	if game.Status != domain.StatusWaiting {
		return nil, fmt.Errorf("game %s is %s: %w", game.ID, game.Status, domain.ErrGameNotJoinable)
	}

	if existing, err := s.repo.GetPlayerByDevice(ctx, game.ID, req.DeviceID); err == nil {
		// Same device rejoining the same game keeps its player identity
		return existing, nil
	} else if !domain.IsNotFoundError(err) {
		return nil, err
	}

	player := domain.Player{
		ID:       uuid.New().String(),
		TeamID:   team.ID,
		GameID:   game.ID,
		DeviceID: req.DeviceID,
		Name:     req.Name,
		IsBot:    domain.IsBotDevice(req.DeviceID),
	}
	if err := s.repo.CreatePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("player joined",
		"player_id", player.ID,
		"team_id", team.ID,
		"game_id", game.ID,
		"is_bot", player.IsBot,
	)
	return &player, nil
}

// ProvisionBots adds bot players to both teams of a game. The roster must
// already have its hunter and hunted teams.
func (s *GameService) ProvisionBots(ctx context.Context, gameID string, hunters, hunted int) ([]domain.Player, error) {
	if hunters < 0 || hunted < 0 {
		return nil, fmt.Errorf("%w: bot counts must be non-negative", domain.ErrInvalidRequest)
	}

	roster, err := s.repo.GameRoster(ctx, gameID)
	if err != nil {
		return nil, err
	}

	var bots []domain.Player
	create := func(teamID, namePrefix string, count int) error {
		for i := 0; i < count; i++ {
			bot := domain.Player{
				ID:       uuid.New().String(),
				TeamID:   teamID,
				GameID:   gameID,
				DeviceID: domain.BotDevicePrefix + uuid.New().String(),
				Name:     fmt.Sprintf("%s %d", namePrefix, i+1),
				IsBot:    true,
			}
			if err := s.repo.CreatePlayer(ctx, bot); err != nil {
				return err
			}
			bots = append(bots, bot)
		}
		return nil
	}

	if err := create(roster.HunterTeam.ID, "Hunter Bot", hunters); err != nil {
		return nil, err
	}
	if err := create(roster.HuntedTeam.ID, "Shadow Bot", hunted); err != nil {
		return nil, err
	}

	s.logger.Info("bots provisioned",
		"game_id", gameID,
		"hunters", hunters,
		"hunted", hunted,
	)
	return bots, nil
}

// StartGame activates a waiting game
func (s *GameService) StartGame(ctx context.Context, gameID string) error {
	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if err := s.lifecycle.Start(ctx, game, time.Now()); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastGameStarted(gameID)
	}
	return nil
}

// ResetGame restarts a game for another round, clearing its captures
func (s *GameService) ResetGame(ctx context.Context, gameID string) error {
	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	return s.lifecycle.Reset(ctx, game, time.Now())
}

// ListCaptures retrieves the capture history of a game
func (s *GameService) ListCaptures(ctx context.Context, gameID string) ([]domain.Capture, error) {
	if _, err := s.repo.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.repo.ListCaptures(ctx, gameID)
}

// GameState assembles the full live view of a game: teams, players with
// their latest positions, online flags and the capture history. Online uses
// the display window, which is wider than the one the simulation trusts.
func (s *GameService) GameState(ctx context.Context, gameID string) (*domain.GameState, error) {
	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	teams, err := s.repo.ListTeams(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.repo.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	captures, err := s.repo.ListCaptures(ctx, gameID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	snapshot, err := s.positions.Snapshot(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading positions: %w", err)
	}

	captured := make(map[string]bool, len(captures))
	for _, c := range captures {
		captured[c.HuntedID] = true
	}

	now := time.Now()
	states := make([]domain.PlayerState, len(players))
	for i, p := range players {
		state := domain.PlayerState{
			Player:   p,
			Online:   s.presence.IsOnline(p.ID, now, s.cfg.OnlineWindow),
			Captured: captured[p.ID],
		}
		if pos, ok := snapshot[p.ID]; ok {
			posCopy := pos
			state.Position = &posCopy
		}
		states[i] = state
	}

	return &domain.GameState{
		Game:     *game,
		Teams:    teams,
		Players:  states,
		Captures: captures,
	}, nil
}
