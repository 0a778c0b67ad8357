package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/manhunt-engine/internal/domain"
	"github.com/manhunt-engine/internal/service"
	"github.com/manhunt-engine/internal/websocket"
)

// Handler provides HTTP handlers for the game API
type Handler struct {
	service *service.GameService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.GameService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Position ingestion
		r.Post("/positions", h.SubmitPosition)
		r.Post("/positions/batch", h.SubmitPositionBatch)
		r.Get("/players/{playerID}/nearby", h.GetNearby)

		// Lobby and game operations
		r.Route("/games", func(r chi.Router) {
			r.Post("/", h.CreateGame)
			r.Get("/", h.ListGames)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Delete("/", h.DeleteGame)
				r.Get("/state", h.GetGameState)
				r.Get("/captures", h.ListCaptures)
				r.Post("/start", h.StartGame)
				r.Post("/reset", h.ResetGame)

				r.Post("/teams", h.CreateTeam)
				r.Get("/teams", h.ListTeams)
				r.Post("/bots", h.ProvisionBots)
			})
		})

		// Team membership
		r.Post("/join", h.JoinTeam)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps domain errors to HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500 body.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidCoordinate):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrHuntedTeamExists),
		errors.Is(err, domain.ErrGameNotJoinable),
		errors.Is(err, domain.ErrInvariantViolation):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// SubmitPosition handles a single position report
func (h *Handler) SubmitPosition(w http.ResponseWriter, r *http.Request) {
	var report domain.PositionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.IngestPosition(r.Context(), report); err != nil {
		h.writeServiceError(w, "submit position", err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// SubmitPositionBatch handles batch position reports
func (h *Handler) SubmitPositionBatch(w http.ResponseWriter, r *http.Request) {
	var batch domain.BatchPositionReport
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if len(batch.Positions) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.IngestPositionBatch(r.Context(), batch); err != nil {
		h.logger.Error("failed to ingest position batch", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"status":   "accepted",
		"received": len(batch.Positions),
	})
}

// GetNearby returns players near the given player's last position
func (h *Handler) GetNearby(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	radius := 500.0
	if v := r.URL.Query().Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		radius = parsed
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	nearby, err := h.service.Nearby(r.Context(), playerID, radius, limit)
	if err != nil {
		h.writeServiceError(w, "nearby", err)
		return
	}

	h.writeSuccess(w, nearby)
}

// CreateGame handles game creation
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	game, err := h.service.CreateGame(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create game", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    game,
	})
}

// ListGames returns all games
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.service.ListGames(r.Context())
	if err != nil {
		h.writeServiceError(w, "list games", err)
		return
	}
	h.writeSuccess(w, games)
}

// GetGame returns a game by ID
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.service.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.writeServiceError(w, "get game", err)
		return
	}
	h.writeSuccess(w, game)
}

// DeleteGame removes a game with all its teams, players and captures
func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGame(r.Context(), chi.URLParam(r, "gameID")); err != nil {
		h.writeServiceError(w, "delete game", err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// GetGameState returns the live view of a game
func (h *Handler) GetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GameState(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.writeServiceError(w, "get game state", err)
		return
	}
	h.writeSuccess(w, state)
}

// ListCaptures returns the capture history of a game
func (h *Handler) ListCaptures(w http.ResponseWriter, r *http.Request) {
	captures, err := h.service.ListCaptures(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.writeServiceError(w, "list captures", err)
		return
	}
	h.writeSuccess(w, captures)
}

// StartGame activates a waiting game
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	if err := h.service.StartGame(r.Context(), chi.URLParam(r, "gameID")); err != nil {
		h.writeServiceError(w, "start game", err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "started"})
}

// ResetGame restarts a game for another round
func (h *Handler) ResetGame(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetGame(r.Context(), chi.URLParam(r, "gameID")); err != nil {
		h.writeServiceError(w, "reset game", err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "reset"})
}

// CreateTeam adds a team to a game
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	team, err := h.service.CreateTeam(r.Context(), chi.URLParam(r, "gameID"), req)
	if err != nil {
		h.writeServiceError(w, "create team", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    team,
	})
}

// ListTeams returns the teams of a game
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.writeServiceError(w, "list teams", err)
		return
	}
	h.writeSuccess(w, teams)
}

// JoinTeam registers a device on a team by join code
func (h *Handler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.JoinTeam(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "join team", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    player,
	})
}

// ProvisionBotsRequest carries the bot counts for a game
type ProvisionBotsRequest struct {
	Hunters int `json:"hunters"`
	Hunted  int `json:"hunted"`
}

// ProvisionBots adds bot players to both teams of a game
func (h *Handler) ProvisionBots(w http.ResponseWriter, r *http.Request) {
	var req ProvisionBotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	bots, err := h.service.ProvisionBots(r.Context(), chi.URLParam(r, "gameID"), req.Hunters, req.Hunted)
	if err != nil {
		h.writeServiceError(w, "provision bots", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    bots,
	})
}
