package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			join_code VARCHAR(16) NOT NULL UNIQUE,
			status VARCHAR(16) NOT NULL DEFAULT 'waiting',
			photo_interval_seconds INT NOT NULL DEFAULT 0,
			simulated BOOLEAN NOT NULL DEFAULT FALSE,
			started_at TIMESTAMP,
			ended_at TIMESTAMP,
			winner_team_id VARCHAR(64),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id VARCHAR(64) PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL,
			join_code VARCHAR(16) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_teams_one_hunted
			ON teams(game_id) WHERE role = 'hunted'`,
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			team_id VARCHAR(64) NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			device_id VARCHAR(128) NOT NULL,
			name VARCHAR(255) NOT NULL,
			is_bot BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(game_id, device_id)
		)`,
		`CREATE TABLE IF NOT EXISTS captures (
			id VARCHAR(64) PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			hunter_id VARCHAR(64) NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			hunted_id VARCHAR(64) NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			distance_meters DOUBLE PRECISION NOT NULL,
			captured_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_game ON teams(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_players_game ON players(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_captures_game_time ON captures(game_id, captured_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateGame inserts a new game record
func (r *Repository) CreateGame(ctx context.Context, game domain.Game) error {
	query := `
		INSERT INTO games (id, name, join_code, status, photo_interval_seconds, simulated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	now := time.Now()
	_, err := r.pool.Exec(ctx, query,
		game.ID,
		game.Name,
		game.JoinCode,
		string(game.Status),
		int(game.PhotoInterval/time.Second),
		game.Simulated,
		now,
	)
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}
	return nil
}

const gameColumns = `id, name, join_code, status, photo_interval_seconds, simulated,
	started_at, ended_at, winner_team_id, created_at, updated_at`

func scanGame(row pgx.Row) (domain.Game, error) {
	var (
		game            domain.Game
		intervalSeconds int
	)
	err := row.Scan(
		&game.ID,
		&game.Name,
		&game.JoinCode,
		&game.Status,
		&intervalSeconds,
		&game.Simulated,
		&game.StartedAt,
		&game.EndedAt,
		&game.WinnerTeamID,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	if err != nil {
		return domain.Game{}, err
	}
	game.PhotoInterval = time.Duration(intervalSeconds) * time.Second
	return game, nil
}

// GetGame retrieves a game by ID
func (r *Repository) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	game, err := scanGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &game, nil
}

// GetGameByJoinCode retrieves a game by its join code
func (r *Repository) GetGameByJoinCode(ctx context.Context, joinCode string) (*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE join_code = $1`
	game, err := scanGame(r.pool.QueryRow(ctx, query, joinCode))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game by join code: %w", err)
	}
	return &game, nil
}

// ListGames retrieves all games, newest first
func (r *Repository) ListGames(ctx context.Context) ([]domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, nil
}

// ListSimulatedGames retrieves all games with bot simulation enabled
func (r *Repository) ListSimulatedGames(ctx context.Context) ([]domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE simulated = TRUE ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing simulated games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, nil
}

// StartGame transitions a waiting game to active
func (r *Repository) StartGame(ctx context.Context, gameID string, now time.Time) error {
	query := `
		UPDATE games
		SET status = $2, started_at = $3, ended_at = NULL, winner_team_id = NULL, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	result, err := r.pool.Exec(ctx, query, gameID, string(domain.StatusActive), now, string(domain.StatusWaiting))
	if err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("game %s is not waiting: %w", gameID, domain.ErrInvariantViolation)
	}
	return nil
}

// EndGame transitions an active game to ended and records the winner
func (r *Repository) EndGame(ctx context.Context, gameID, winnerTeamID string, now time.Time) error {
	query := `
		UPDATE games
		SET status = $2, ended_at = $3, winner_team_id = $4, updated_at = $3
		WHERE id = $1 AND status = $5
	`
	result, err := r.pool.Exec(ctx, query, gameID, string(domain.StatusEnded), now, winnerTeamID, string(domain.StatusActive))
	if err != nil {
		return fmt.Errorf("ending game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("game %s is not active: %w", gameID, domain.ErrInvariantViolation)
	}
	return nil
}

// ResetGame restarts a game for another round: capture history is deleted,
// status returns to active and started_at is refreshed. Both writes happen in
// one transaction so a reset never leaves stale captures.
func (r *Repository) ResetGame(ctx context.Context, gameID string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM captures WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("deleting captures: %w", err)
	}

	query := `
		UPDATE games
		SET status = $2, started_at = $3, ended_at = NULL, winner_team_id = NULL, updated_at = $3
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query, gameID, string(domain.StatusActive), now)
	if err != nil {
		return fmt.Errorf("resetting game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}
	return nil
}

// DeleteGame removes a game; teams, players and captures cascade
func (r *Repository) DeleteGame(ctx context.Context, gameID string) error {
	query := `DELETE FROM games WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, gameID)
	if err != nil {
		return fmt.Errorf("deleting game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

// CreateTeam inserts a new team record
func (r *Repository) CreateTeam(ctx context.Context, team domain.Team) error {
	query := `
		INSERT INTO teams (id, game_id, name, role, join_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		team.ID,
		team.GameID,
		team.Name,
		string(team.Role),
		team.JoinCode,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

// GetTeamByJoinCode retrieves a team by its join code
func (r *Repository) GetTeamByJoinCode(ctx context.Context, joinCode string) (*domain.Team, error) {
	query := `
		SELECT id, game_id, name, role, join_code, created_at
		FROM teams
		WHERE join_code = $1
	`
	var team domain.Team
	err := r.pool.QueryRow(ctx, query, joinCode).Scan(
		&team.ID,
		&team.GameID,
		&team.Name,
		&team.Role,
		&team.JoinCode,
		&team.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTeamNotFound
		}
		return nil, fmt.Errorf("getting team by join code: %w", err)
	}
	return &team, nil
}

// ListTeams retrieves the teams of a game
func (r *Repository) ListTeams(ctx context.Context, gameID string) ([]domain.Team, error) {
	query := `
		SELECT id, game_id, name, role, join_code, created_at
		FROM teams
		WHERE game_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var team domain.Team
		err := rows.Scan(
			&team.ID,
			&team.GameID,
			&team.Name,
			&team.Role,
			&team.JoinCode,
			&team.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// CountHuntedTeams returns how many hunted teams a game has
func (r *Repository) CountHuntedTeams(ctx context.Context, gameID string) (int, error) {
	query := `SELECT COUNT(*) FROM teams WHERE game_id = $1 AND role = $2`
	var count int
	if err := r.pool.QueryRow(ctx, query, gameID, string(domain.RoleHunted)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting hunted teams: %w", err)
	}
	return count, nil
}

// CreatePlayer inserts a new player record
func (r *Repository) CreatePlayer(ctx context.Context, player domain.Player) error {
	query := `
		INSERT INTO players (id, team_id, game_id, device_id, name, is_bot, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		player.ID,
		player.TeamID,
		player.GameID,
		player.DeviceID,
		player.Name,
		player.IsBot,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

// GetPlayer retrieves a player by ID
func (r *Repository) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT id, team_id, game_id, device_id, name, is_bot, last_seen, created_at
		FROM players
		WHERE id = $1
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&player.ID,
		&player.TeamID,
		&player.GameID,
		&player.DeviceID,
		&player.Name,
		&player.IsBot,
		&player.LastSeen,
		&player.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &player, nil
}

// GetPlayerByDevice retrieves a player by game and device identity
func (r *Repository) GetPlayerByDevice(ctx context.Context, gameID, deviceID string) (*domain.Player, error) {
	query := `
		SELECT id, team_id, game_id, device_id, name, is_bot, last_seen, created_at
		FROM players
		WHERE game_id = $1 AND device_id = $2
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, gameID, deviceID).Scan(
		&player.ID,
		&player.TeamID,
		&player.GameID,
		&player.DeviceID,
		&player.Name,
		&player.IsBot,
		&player.LastSeen,
		&player.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player by device: %w", err)
	}
	return &player, nil
}

// ListPlayers retrieves the players of a game
func (r *Repository) ListPlayers(ctx context.Context, gameID string) ([]domain.Player, error) {
	query := `
		SELECT id, team_id, game_id, device_id, name, is_bot, last_seen, created_at
		FROM players
		WHERE game_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var player domain.Player
		err := rows.Scan(
			&player.ID,
			&player.TeamID,
			&player.GameID,
			&player.DeviceID,
			&player.Name,
			&player.IsBot,
			&player.LastSeen,
			&player.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, player)
	}
	return players, nil
}

// TouchPlayerLastSeen updates the durable last seen timestamp of a player
func (r *Repository) TouchPlayerLastSeen(ctx context.Context, playerID string, now time.Time) error {
	query := `UPDATE players SET last_seen = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, playerID, now)
	if err != nil {
		return fmt.Errorf("touching player last seen: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

// GameRoster loads a game with its teams and players grouped by role. A
// playable roster has exactly one team per role; anything else is reported
// as an invariant violation so the simulation skips the game.
func (r *Repository) GameRoster(ctx context.Context, gameID string) (*domain.Roster, error) {
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	teams, err := r.ListTeams(ctx, gameID)
	if err != nil {
		return nil, err
	}

	roster := &domain.Roster{Game: *game}
	var hunterCount, huntedCount int
	for _, team := range teams {
		switch team.Role {
		case domain.RoleHunter:
			roster.HunterTeam = team
			hunterCount++
		case domain.RoleHunted:
			roster.HuntedTeam = team
			huntedCount++
		}
	}
	if hunterCount != 1 || huntedCount != 1 {
		return nil, fmt.Errorf("game %s has %d hunter and %d hunted teams: %w",
			gameID, hunterCount, huntedCount, domain.ErrInvariantViolation)
	}

	players, err := r.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, player := range players {
		switch player.TeamID {
		case roster.HunterTeam.ID:
			roster.Hunters = append(roster.Hunters, player)
		case roster.HuntedTeam.ID:
			roster.Hunted = append(roster.Hunted, player)
		}
	}
	return roster, nil
}

// RecordCapture inserts a capture fact
func (r *Repository) RecordCapture(ctx context.Context, capture domain.Capture) error {
	query := `
		INSERT INTO captures (id, game_id, hunter_id, hunted_id, distance_meters, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		capture.ID,
		capture.GameID,
		capture.HunterID,
		capture.HuntedID,
		capture.DistanceMeters,
		capture.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("recording capture: %w", err)
	}
	return nil
}

// CapturesSince retrieves the captures of a game at or after the given time
func (r *Repository) CapturesSince(ctx context.Context, gameID string, since time.Time) ([]domain.Capture, error) {
	query := `
		SELECT id, game_id, hunter_id, hunted_id, distance_meters, captured_at
		FROM captures
		WHERE game_id = $1 AND captured_at >= $2
		ORDER BY captured_at
	`
	return r.queryCaptures(ctx, query, gameID, since)
}

// ListCaptures retrieves the full capture history of a game, newest first
func (r *Repository) ListCaptures(ctx context.Context, gameID string) ([]domain.Capture, error) {
	query := `
		SELECT id, game_id, hunter_id, hunted_id, distance_meters, captured_at
		FROM captures
		WHERE game_id = $1
		ORDER BY captured_at DESC
	`
	return r.queryCaptures(ctx, query, gameID)
}

// CapturedPlayerIDs retrieves the distinct hunted players captured in a game
func (r *Repository) CapturedPlayerIDs(ctx context.Context, gameID string) ([]string, error) {
	query := `SELECT DISTINCT hunted_id FROM captures WHERE game_id = $1`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing captured players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning captured player: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Repository) queryCaptures(ctx context.Context, query string, args ...interface{}) ([]domain.Capture, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	defer rows.Close()

	var captures []domain.Capture
	for rows.Next() {
		var capture domain.Capture
		err := rows.Scan(
			&capture.ID,
			&capture.GameID,
			&capture.HunterID,
			&capture.HuntedID,
			&capture.DistanceMeters,
			&capture.CapturedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		captures = append(captures, capture)
	}
	return captures, nil
}
