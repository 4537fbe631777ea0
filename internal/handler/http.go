package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/player-console/internal/console"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/websocket"
)

// Journal is the read side of the action journal
type Journal interface {
	ListActions(ctx context.Context, limit int) ([]domain.ActionRecord, error)
	ActionsForPlayer(ctx context.Context, account, playerRef string, limit int) ([]domain.ActionRecord, error)
}

var errJournalDisabled = errors.New("action journal is disabled")

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// Handler provides the operator HTTP API
type Handler struct {
	console *console.Console
	journal Journal
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler. journal may be nil.
func NewHandler(c *console.Console, journal Journal, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		console: c,
		journal: journal,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", h.GetSession)

		r.Put("/credentials", h.StoreCredentials)
		r.Patch("/credentials", h.EditCredentials)

		r.Get("/players", h.ListPlayers)
		r.Post("/players", h.CreatePlayer)

		r.Put("/selection", h.Select)
		r.Delete("/selection", h.ClearSelection)

		r.Get("/profile", h.GetProfile)
		r.Post("/profile/refresh", h.RefreshProfile)
		r.Get("/history", h.GetHistory)
		r.Post("/history/refresh", h.RefreshHistory)

		r.Route("/boards/{board}", func(r chi.Router) {
			r.Get("/", h.ActivateBoard)
			r.Get("/snapshot", h.GetBoardSnapshot)
		})
		r.Post("/prizes/{prizeID}/claim", h.ClaimPrize)
		r.Post("/events/{eventID}/complete", h.CompleteEvent)

		r.Route("/quiz", func(r chi.Router) {
			r.Get("/", h.GetQuiz)
			r.Delete("/", h.ResetQuiz)
			r.Post("/start", h.StartQuiz)
			r.Post("/answer", h.AnswerQuiz)
			r.Post("/next", h.NextQuestion)
			r.Post("/previous", h.PreviousQuestion)
			r.Post("/submit", h.SubmitQuiz)
		})

		r.Get("/journal", h.ListJournal)

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps err to a status and writes the user-facing message
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   domain.UserMessage(err),
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrIncompleteAnswers),
		errors.Is(err, domain.ErrNoAnswer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnknownBoard),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingCredentials),
		errors.Is(err, domain.ErrCredentialsNotStored):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrNoPlayerSelected),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProbeFailed),
		errors.Is(err, domain.ErrTransportFailure):
		return http.StatusBadGateway
	case errors.Is(err, errJournalDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]any{
		"total_connections": h.hub.TotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once credentials are stored
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if !h.console.Snapshot().Credentials.Stored {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Error:   domain.ErrCredentialsNotStored.Error(),
		})
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetSession returns the whole session read model
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.console.Snapshot())
}

type credentialsRequest struct {
	Account string `json:"account"`
	APIKey  string `json:"api_key"`
}

// StoreCredentials persists the account and api key
func (h *Handler) StoreCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	creds := domain.Credentials{Account: req.Account, APIKey: req.APIKey}
	if err := h.console.StoreCredentials(r.Context(), creds); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, h.console.Snapshot().Credentials)
}

// EditCredentials changes the credentials in memory only
func (h *Handler) EditCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.console.EditCredentials(domain.Credentials{Account: req.Account, APIKey: req.APIKey})
	h.writeSuccess(w, h.console.Snapshot().Credentials)
}

// ListPlayers reloads and returns the player directory
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.console.LoadDirectory(r.Context()))
}

// CreatePlayer creates a player after an existence probe
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req domain.NewPlayer
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.console.CreatePlayer(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: p})
}

// Select makes a player the active selection
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerRef string `json:"player_ref"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.console.Select(r.Context(), req.PlayerRef); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, h.console.Snapshot())
}

// ClearSelection drops the active selection
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.console.Clear(r.Context())
	h.writeSuccess(w, map[string]string{"status": "cleared"})
}

// GetProfile returns the selected player's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.console.Profile()
	if !ok {
		h.writeError(w, domain.ErrNoPlayerSelected)
		return
	}
	h.writeSuccess(w, p)
}

// RefreshProfile reloads the selected player's profile
func (h *Handler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.console.RefreshProfile(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, p)
}

// GetHistory returns the last loaded history, loading it on first use
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if hist, ok := h.console.History(); ok {
		h.writeSuccess(w, hist)
		return
	}
	h.RefreshHistory(w, r)
}

// RefreshHistory reloads the selected player's history
func (h *Handler) RefreshHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.console.RefreshHistory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, hist)
}

// ActivateBoard fetches a board for the current selection
func (h *Handler) ActivateBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.console.Activate(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, snap)
}

// GetBoardSnapshot returns a board's last snapshot
func (h *Handler) GetBoardSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.console.Board(chi.URLParam(r, "board"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, snap)
}

// ClaimPrize claims a prize for the selected player
func (h *Handler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	if err := h.console.ClaimPrize(r.Context(), chi.URLParam(r, "prizeID")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "claimed"})
}

// CompleteEvent completes an event for the selected player
func (h *Handler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.console.CompleteEvent(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "completed"})
}

// GetQuiz returns the quiz session view
func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.console.Quiz())
}

// ResetQuiz abandons the quiz session
func (h *Handler) ResetQuiz(w http.ResponseWriter, r *http.Request) {
	h.console.ResetQuiz()
	h.writeSuccess(w, h.console.Quiz())
}

// StartQuiz opens a quiz for the selected player
func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuizID string `json:"quiz_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.console.StartQuiz(r.Context(), req.QuizID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, h.console.Quiz())
}

// AnswerQuiz records an answer
func (h *Handler) AnswerQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID string `json:"question_id"`
		ChoiceID   string `json:"choice_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.console.AnswerQuiz(req.QuestionID, req.ChoiceID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, h.console.Quiz())
}

// NextQuestion advances the quiz
func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.console.NextQuestion(); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, h.console.Quiz())
}

// PreviousQuestion steps the quiz back
func (h *Handler) PreviousQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.console.PreviousQuestion(); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, h.console.Quiz())
}

// SubmitQuiz submits every answer
func (h *Handler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.console.SubmitQuiz(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, feedback)
}

// ListJournal returns recent actions, optionally for one player
func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeError(w, errJournalDisabled)
		return
	}

	limit := defaultJournalLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, domain.ErrInvalidRequest)
			return
		}
		limit = min(n, maxJournalLimit)
	}

	var (
		records []domain.ActionRecord
		err     error
	)
	if ref := r.URL.Query().Get("player_ref"); ref != "" {
		account := h.console.Snapshot().Credentials.Account
		records, err = h.journal.ActionsForPlayer(r.Context(), account, ref, limit)
	} else {
		records, err = h.journal.ListActions(r.Context(), limit)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, records)
}
