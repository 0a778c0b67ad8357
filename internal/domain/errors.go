package domain

import "errors"

// Domain errors
var (
	ErrInvalidCoordinate  = errors.New("latitude or longitude out of range")
	ErrPositionNotFound   = errors.New("no known position for player")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrGameNotFound       = errors.New("game not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrGameNotJoinable    = errors.New("game is not accepting players")
	ErrHuntedTeamExists   = errors.New("game already has a hunted team")
	ErrInvariantViolation = errors.New("game state violates an invariant")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrPositionNotFound)
}
