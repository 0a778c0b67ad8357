package domain

import "time"

// Position is the latest known location of a player. At most one live record
// exists per player; a new report replaces the previous value.
type Position struct {
	PlayerID  string    `json:"player_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidCoordinate reports whether lat/lng are inside the valid ranges
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// PositionReport is a position submission from a device or producer
type PositionReport struct {
	PlayerID   string    `json:"player_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at,omitempty"`
}

// BatchPositionReport represents multiple position submissions
type BatchPositionReport struct {
	Positions []PositionReport `json:"positions"`
}

// NearbyPlayer is a player found by a proximity query around another player
type NearbyPlayer struct {
	PlayerID       string  `json:"player_id"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Capture is the immutable fact that a hunter caught a hunted player
type Capture struct {
	ID             string    `json:"id"`
	GameID         string    `json:"game_id"`
	HunterID       string    `json:"hunter_id"`
	HuntedID       string    `json:"hunted_id"`
	DistanceMeters float64   `json:"distance_meters"`
	CapturedAt     time.Time `json:"captured_at"`
}
