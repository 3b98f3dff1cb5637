// Package api provides the HTTP surface of the assistant: session
// initialization, chat turns, and the trace log endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jsamit27/ava/internal/agent"
	"github.com/jsamit27/ava/internal/domain"
)

// BackendFactory builds an authenticated backend client bound to a
// fresh conversation thread for one logical user.
type BackendFactory func(ctx context.Context, userID string) (agent.Asker, error)

// Handler holds the session manager and the wiring for new sessions.
type Handler struct {
	mgr        *agent.Manager
	dbURL      string
	newBackend BackendFactory
}

// NewHandler creates a Handler. databaseURL is the storage descriptor
// every session created over HTTP will carry.
func NewHandler(mgr *agent.Manager, databaseURL string, factory BackendFactory) *Handler {
	return &Handler{mgr: mgr, dbURL: databaseURL, newBackend: factory}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/init", h.InitSession)
		r.Post("/chat", h.Chat)
		r.Get("/logs", h.Logs)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type initRequest struct {
	LeadID          string `json:"lead_id"`
	BuyerID         string `json:"buyer_id"`
	EscalationPhone string `json:"escalation_phone"`
}

// InitSession creates (or reuses) a session for a lead. The backend
// client is authenticated and bound to a fresh conversation thread
// before the session id is handed out.
func (h *Handler) InitSession(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	leadID := strings.TrimSpace(req.LeadID)
	buyerID := strings.TrimSpace(req.BuyerID)
	escalationPhone := strings.TrimSpace(req.EscalationPhone)
	if leadID == "" || buyerID == "" || escalationPhone == "" {
		Error(w, http.StatusBadRequest, "lead_id, buyer_id, and escalation_phone are required")
		return
	}
	if h.dbURL == "" {
		slog.Error("Session init refused: DATABASE_URL is not configured")
		Error(w, http.StatusInternalServerError, "DATABASE_URL environment variable is required")
		return
	}

	// one live session per lead; a repeat init gets the existing thread
	if existing, ok := h.mgr.FindByLead(leadID); ok {
		slog.Info("Reusing session for lead", "lead_id", leadID, "session_id", existing)
		JSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"session_id": existing,
			"message":    "Session initialized successfully",
		})
		return
	}

	backend, err := h.newBackend(r.Context(), leadID)
	if err != nil {
		slog.Error("Failed to initialize backend session", "lead_id", leadID, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to initialize: "+err.Error())
		return
	}

	sess := &domain.Session{
		SessionID:       uuid.NewString(),
		LeadID:          leadID,
		BuyerID:         buyerID,
		EscalationPhone: escalationPhone,
		StorageDSN:      h.dbURL,
	}
	h.mgr.Register(sess, backend)
	slog.Info("Session initialized", "session_id", sess.SessionID, "lead_id", leadID, "buyer_id", buyerID)

	JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": sess.SessionID,
		"message":    "Session initialized successfully",
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Chat runs one turn for a session.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		Error(w, http.StatusBadRequest, "Message is required")
		return
	}
	if lower := strings.ToLower(message); lower == "exit" || lower == "quit" {
		JSON(w, http.StatusOK, map[string]string{"reply": "Session ended. Thank you!"})
		return
	}

	reply, err := h.mgr.Turn(r.Context(), req.SessionID, message)
	switch {
	case errors.Is(err, agent.ErrUnknownSession):
		Error(w, http.StatusBadRequest, "Invalid or missing session_id. Please initialize session first.")
		return
	case errors.Is(err, agent.ErrTurnInProgress):
		Error(w, http.StatusConflict, "turn_in_progress")
		return
	case err != nil:
		slog.Error("Turn failed", "session_id", req.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	slog.Info("Turn complete", "session_id", req.SessionID, "reply_len", len(reply))
	JSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// Logs returns the most recent trace entries for a session.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	logs, err := h.mgr.Logs(sessionID, 10)
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid or missing session_id")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"logs": logs})
}
