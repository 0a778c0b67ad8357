package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/domain"
)

// PositionService provides Redis-backed live position storage. Each player
// has a hash with the latest fix and a member in a shared geo index, written
// together in one pipeline so a report replaces both atomically.
type PositionService struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPositionService creates a new Redis position service
func NewPositionService(cfg *config.RedisConfig, logger *slog.Logger) (*PositionService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &PositionService{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *PositionService) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *PositionService) Client() *redis.Client {
	return s.client
}

// positionKey returns the Redis key for a player's latest position hash
func (s *PositionService) positionKey(playerID string) string {
	return fmt.Sprintf("position:%s", playerID)
}

// geoKey returns the Redis key for the shared geo index
func (s *PositionService) geoKey() string {
	return "positions:geo"
}

// Upsert stores a player's latest position, replacing any previous value
func (s *PositionService) Upsert(ctx context.Context, playerID string, lat, lng float64, now time.Time) error {
	if !domain.ValidCoordinate(lat, lng) {
		return fmt.Errorf("player %s at (%f, %f): %w", playerID, lat, lng, domain.ErrInvalidCoordinate)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.positionKey(playerID),
		"lat", strconv.FormatFloat(lat, 'f', -1, 64),
		"lng", strconv.FormatFloat(lng, 'f', -1, 64),
		"updated_at", now.UTC().Format(time.RFC3339Nano),
	)
	pipe.GeoAdd(ctx, s.geoKey(), &redis.GeoLocation{
		Name:      playerID,
		Longitude: lng,
		Latitude:  lat,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing position: %w", err)
	}
	return nil
}

// Get returns a player's latest position
func (s *PositionService) Get(ctx context.Context, playerID string) (domain.Position, error) {
	fields, err := s.client.HGetAll(ctx, s.positionKey(playerID)).Result()
	if err != nil {
		return domain.Position{}, fmt.Errorf("getting position: %w", err)
	}
	if len(fields) == 0 {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	return parsePosition(playerID, fields)
}

// Snapshot returns the latest positions for the given players. Players
// without a stored position are omitted. All hashes are read in a single
// pipeline so the result reflects one point in time per round trip.
func (s *PositionService) Snapshot(ctx context.Context, playerIDs []string) (map[string]domain.Position, error) {
	if len(playerIDs) == 0 {
		return map[string]domain.Position{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(playerIDs))
	for i, id := range playerIDs {
		cmds[i] = pipe.HGetAll(ctx, s.positionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	snapshot := make(map[string]domain.Position, len(playerIDs))
	for i, id := range playerIDs {
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		pos, err := parsePosition(id, fields)
		if err != nil {
			s.logger.Warn("skipping malformed position record", "player_id", id, "error", err)
			continue
		}
		snapshot[id] = pos
	}
	return snapshot, nil
}

// Nearby returns players within radiusMeters of the given player, nearest
// first, excluding the player itself
func (s *PositionService) Nearby(ctx context.Context, playerID string, radiusMeters float64, limit int) ([]domain.NearbyPlayer, error) {
	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Member:     playerID,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}
	if limit > 0 {
		// One extra slot because the queried player is in the result set
		query.Count = limit + 1
	}
	locations, err := s.client.GeoSearchLocation(ctx, s.geoKey(), query).Result()
	if err != nil {
		return nil, fmt.Errorf("searching nearby players: %w", err)
	}

	nearby := make([]domain.NearbyPlayer, 0, len(locations))
	for _, loc := range locations {
		if loc.Name == playerID {
			continue
		}
		if limit > 0 && len(nearby) >= limit {
			break
		}
		nearby = append(nearby, domain.NearbyPlayer{
			PlayerID:       loc.Name,
			Lat:            loc.Latitude,
			Lng:            loc.Longitude,
			DistanceMeters: loc.Dist,
		})
	}
	return nearby, nil
}

// RemovePlayer deletes a player's position and geo index entry
func (s *PositionService) RemovePlayer(ctx context.Context, playerID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.positionKey(playerID))
	pipe.ZRem(ctx, s.geoKey(), playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("removing position: %w", err)
	}
	return nil
}

func parsePosition(playerID string, fields map[string]string) (domain.Position, error) {
	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parsing lat: %w", err)
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parsing lng: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return domain.Position{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return domain.Position{
		PlayerID:  playerID,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: updatedAt,
	}, nil
}
