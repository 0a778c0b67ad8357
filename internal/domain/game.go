package domain

import (
	"strings"
	"time"
)

// Role represents which side of the pursuit a team plays
type Role string

const (
	RoleHunter Role = "hunter"
	RoleHunted Role = "hunted"
)

// GameStatus represents the lifecycle state of a game
type GameStatus string

const (
	StatusWaiting GameStatus = "waiting"
	StatusActive  GameStatus = "active"
	StatusEnded   GameStatus = "ended"
)

// BotDevicePrefix marks device identities that belong to bot-controlled players
const BotDevicePrefix = "bot-"

// IsBotDevice reports whether a device identity belongs to a bot
func IsBotDevice(deviceID string) bool {
	return strings.HasPrefix(deviceID, BotDevicePrefix)
}

// Game represents a single pursuit round
type Game struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	JoinCode      string        `json:"join_code"`
	Status        GameStatus    `json:"status"`
	PhotoInterval time.Duration `json:"photo_interval"`
	Simulated     bool          `json:"simulated"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	WinnerTeamID  *string       `json:"winner_team_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Team represents one side of a game
type Team struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

// Player represents a participant; IsBot is the explicit tag derived from the
// device identity prefix at registration time
type Player struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	GameID    string    `json:"game_id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	IsBot     bool      `json:"is_bot"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// Roster is the full set of participants of a game, grouped by role
type Roster struct {
	Game       Game
	HunterTeam Team
	HuntedTeam Team
	Hunters    []Player
	Hunted     []Player
}

// Players returns all roster members, hunters first
func (r *Roster) Players() []Player {
	out := make([]Player, 0, len(r.Hunters)+len(r.Hunted))
	out = append(out, r.Hunters...)
	out = append(out, r.Hunted...)
	return out
}

// PlayerIDs returns the IDs of all roster members
func (r *Roster) PlayerIDs() []string {
	players := r.Players()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

// CreateGameRequest represents a request to create a new game
type CreateGameRequest struct {
	Name          string        `json:"name"`
	PhotoInterval time.Duration `json:"photo_interval,omitempty"`
	Simulated     bool          `json:"simulated,omitempty"`
}

// CreateTeamRequest represents a request to create a team within a game
type CreateTeamRequest struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// JoinRequest represents a request to join a team by code
type JoinRequest struct {
	JoinCode string `json:"join_code"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// PlayerState is a player's live view used by state queries
type PlayerState struct {
	Player   Player    `json:"player"`
	Position *Position `json:"position,omitempty"`
	Online   bool      `json:"online"`
	Captured bool      `json:"captured"`
}

// GameState is the full live view of a game for external pollers
type GameState struct {
	Game     Game          `json:"game"`
	Teams    []Team        `json:"teams"`
	Players  []PlayerState `json:"players"`
	Captures []Capture     `json:"captures"`
}
