package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/services"
)

// ChatRequest for POST body. DatasourceID optionally binds the session's
// datasource on first use.
type ChatRequest struct {
	UserID       string  `json:"user_id"`
	Text         string  `json:"text"`
	DatasourceID *string `json:"datasource_id,omitempty"`
}

// ChatHandler accepts user questions and returns the pipeline's response
// envelope.
type ChatHandler struct {
	orchestrator services.Orchestrator
	logger       *zap.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(orchestrator services.Orchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions/{sid}/messages", h.Chat)
}

// Chat handles POST /api/sessions/{sid}/messages. Failures inside the pipeline
// still return 200 with an error envelope; only transport-level problems
// map to HTTP errors.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if req.UserID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	}

	var datasourceID *uuid.UUID
	if req.DatasourceID != nil {
		parsed, err := uuid.Parse(*req.DatasourceID)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_datasource_id", "Invalid datasource ID format")
			return
		}
		datasourceID = &parsed
	}

	envelope, err := h.orchestrator.Handle(r.Context(), sessionID, req.UserID, req.Text, datasourceID)
	if err != nil {
		h.logger.Error("Chat request failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	status := http.StatusOK
	if envelope.ErrorKind == string(apperrors.KindRateLimited) {
		status = http.StatusTooManyRequests
	}

	if err := WriteJSON(w, status, envelope); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}
