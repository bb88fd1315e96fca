package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
	"github.com/askdeck-ai/askdeck-engine/pkg/services"
)

// SessionResponse matches the frontend Session shape.
type SessionResponse struct {
	SessionID    string  `json:"session_id"`
	UserID       string  `json:"user_id"`
	DatasourceID *string `json:"datasource_id,omitempty"`
	Title        string  `json:"title"`
	Archived     bool    `json:"archived"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// ListSessionsResponse wraps the array for frontend compatibility.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// CreateSessionRequest for POST body.
type CreateSessionRequest struct {
	UserID       string  `json:"user_id"`
	DatasourceID *string `json:"datasource_id,omitempty"`
}

// BindDatasourceRequest for POST bind body.
type BindDatasourceRequest struct {
	DatasourceID string `json:"datasource_id"`
}

// SessionsHandler handles session lifecycle endpoints.
type SessionsHandler struct {
	sessions     services.SessionService
	orchestrator services.Orchestrator
	messageRepo  repositories.MessageRepository
	logger       *zap.Logger
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(sessions services.SessionService, orchestrator services.Orchestrator, messageRepo repositories.MessageRepository, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, orchestrator: orchestrator, messageRepo: messageRepo, logger: logger}
}

// RegisterRoutes registers the session handler's routes on the given mux.
func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.Create)
	mux.HandleFunc("GET /api/sessions", h.List)
	mux.HandleFunc("GET /api/sessions/{sid}", h.Get)
	mux.HandleFunc("POST /api/sessions/{sid}/datasource", h.BindDatasource)
	mux.HandleFunc("DELETE /api/sessions/{sid}", h.Archive)
	mux.HandleFunc("GET /api/sessions/{sid}/messages", h.ListMessages)
}

// Create handles POST /api/sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if req.UserID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
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

	session, err := h.sessions.Create(r.Context(), req.UserID, datasourceID)
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, toSessionResponse(session)); err != nil {
		h.logger.Error("Failed to encode session response", zap.Error(err))
	}
}

// List handles GET /api/sessions?user_id=...
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_user_id", "user_id query parameter is required")
		return
	}

	sessions, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	response := ListSessionsResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for _, session := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(session))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode sessions response", zap.Error(err))
	}
}

// Get handles GET /api/sessions/{sid}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, toSessionResponse(session)); err != nil {
		h.logger.Error("Failed to encode session response", zap.Error(err))
	}
}

// BindDatasource handles POST /api/sessions/{sid}/datasource.
func (h *SessionsHandler) BindDatasource(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	var req BindDatasourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	datasourceID, err := uuid.Parse(req.DatasourceID)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_datasource_id", "Invalid datasource ID format")
		return
	}

	if err := h.sessions.BindDatasource(r.Context(), sessionID, datasourceID); err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Archive handles DELETE /api/sessions/{sid}. Sessions are archived, never
// removed.
func (h *SessionsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Archive(r.Context(), sessionID); err != nil {
		_ = WriteServiceError(w, err)
		return
	}
	h.orchestrator.EvictSession(sessionID)

	w.WriteHeader(http.StatusNoContent)
}

// MessageResponse is one persisted conversation turn.
type MessageResponse struct {
	MessageID    string  `json:"message_id"`
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	IsError      bool    `json:"is_error"`
	GeneratedSQL *string `json:"generated_sql,omitempty"`
	QueryID      *string `json:"query_id,omitempty"`
	DashboardID  *string `json:"dashboard_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// ListMessagesResponse wraps the array for frontend compatibility.
type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// ListMessages handles GET /api/sessions/{sid}/messages. The full history
// is returned, error turns included; truncation only applies to model
// context, never to display.
func (h *SessionsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if _, err := h.sessions.Get(r.Context(), sessionID); err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	messages, err := h.messageRepo.ListBySession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to list messages", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	response := ListMessagesResponse{Messages: make([]MessageResponse, 0, len(messages))}
	for _, message := range messages {
		response.Messages = append(response.Messages, toMessageResponse(message))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode messages response", zap.Error(err))
	}
}

func toSessionResponse(session *models.Session) SessionResponse {
	response := SessionResponse{
		SessionID: session.ID.String(),
		UserID:    session.UserID,
		Title:     session.Title,
		Archived:  session.Archived,
		CreatedAt: session.CreatedAt.Format(time.RFC3339),
		UpdatedAt: session.UpdatedAt.Format(time.RFC3339),
	}
	if session.DatasourceID != nil {
		id := session.DatasourceID.String()
		response.DatasourceID = &id
	}
	return response
}

func toMessageResponse(message *models.Message) MessageResponse {
	response := MessageResponse{
		MessageID:    message.ID.String(),
		Role:         string(message.Role),
		Content:      message.Content,
		IsError:      message.IsError,
		GeneratedSQL: message.GeneratedSQL,
		CreatedAt:    message.CreatedAt.Format(time.RFC3339),
	}
	if message.QueryID != nil {
		id := message.QueryID.String()
		response.QueryID = &id
	}
	if message.DashboardID != nil {
		id := message.DashboardID.String()
		response.DashboardID = &id
	}
	return response
}
