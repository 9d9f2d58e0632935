package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Frostie0/braina-game-server/internal/game"
	"github.com/Frostie0/braina-game-server/internal/questions"
)

// RoomService is what the HTTP surface needs from the room registry.
type RoomService interface {
	Registry
	CreateRoom(hostID string, variant game.Variant, settings game.Settings, qs []questions.Question) (string, error)
}

// Handler exposes the gateway's HTTP endpoints: room creation, the WebSocket
// upgrade, and connection stats.
type Handler struct {
	connectionManager *ConnectionManager
	rooms             RoomService
	source            questions.Source
}

// NewHandler creates the gateway HTTP handler.
func NewHandler(cm *ConnectionManager, rooms RoomService, source questions.Source) *Handler {
	return &Handler{
		connectionManager: cm,
		rooms:             rooms,
		source:            source,
	}
}

// CreateRoomRequest creates a game room. Questions come either inline (from
// the content collaborator) or by quiz ID through the question source.
type CreateRoomRequest struct {
	HostID   string `json:"hostId"`
	Variant  string `json:"variant"`
	QuizID   string `json:"quizId,omitempty"`
	Settings struct {
		MaxPlayers         int `json:"maxPlayers"`
		TimePerTurnSec     int `json:"timePerTurnSec"`
		TimePerQuestionSec int `json:"timePerQuestionSec"`
		TotalQuestions     int `json:"totalQuestions"`
	} `json:"settings"`
	Questions []questions.Question `json:"questions,omitempty"`
}

type CreateRoomResponse struct {
	GameCode string `json:"gameCode"`
}

// HandleCreateRoom handles POST /rooms.
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.HostID == "" {
		http.Error(w, "hostId is required", http.StatusBadRequest)
		return
	}

	variant := game.Variant(req.Variant)
	if variant != game.VariantTrivia && variant != game.VariantTicTacToe {
		http.Error(w, "variant must be trivia or tictactoe", http.StatusBadRequest)
		return
	}

	qs := req.Questions
	if len(qs) == 0 && req.QuizID != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		loaded, err := h.source.Load(ctx, req.QuizID)
		if err != nil {
			log.Error().Err(err).Str("quiz_id", req.QuizID).Msg("failed to load question set")
			http.Error(w, "unknown quiz", http.StatusNotFound)
			return
		}
		qs = loaded
	}

	settings := game.Settings{
		MaxPlayers:      req.Settings.MaxPlayers,
		TimePerTurn:     time.Duration(req.Settings.TimePerTurnSec) * time.Second,
		TimePerQuestion: time.Duration(req.Settings.TimePerQuestionSec) * time.Second,
		TotalQuestions:  req.Settings.TotalQuestions,
	}

	code, err := h.rooms.CreateRoom(req.HostID, variant, settings, qs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateRoomResponse{GameCode: code})
}

// HandleGameConnection handles WebSocket upgrades for a room. The carried
// user ID is the identity every event on this connection is checked against.
func (h *Handler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	// In production the user ID comes from the session token; the query
	// parameter mirrors what the auth middleware would inject.
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if _, err := h.rooms.Lookup(code); err != nil {
		if errors.Is(err, game.ErrRoomNotFound) {
			http.Error(w, "unknown room code", http.StatusNotFound)
			return
		}
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, code); err != nil {
		log.Error().
			Err(err).
			Str("game_code", code).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleStats returns statistics about active connections.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.connectionManager.GetStats())
}

// RegisterRoutes registers gateway routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/rooms", h.HandleCreateRoom)
	mux.HandleFunc("/ws/game", h.HandleGameConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}
