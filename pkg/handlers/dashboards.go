package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
)

// DashboardResponse matches the frontend Dashboard shape. The rendered
// document is served separately.
type DashboardResponse struct {
	DashboardID string   `json:"dashboard_id"`
	QueryID     string   `json:"query_id"`
	Name        string   `json:"name"`
	ChartCount  int      `json:"chart_count"`
	ChartTypes  []string `json:"chart_types"`
	CreatedAt   string   `json:"created_at"`
}

// RenameDashboardRequest for PATCH body.
type RenameDashboardRequest struct {
	Name string `json:"name"`
}

// DashboardsHandler serves dashboard artifacts.
type DashboardsHandler struct {
	dashboardRepo repositories.DashboardRepository
	logger        *zap.Logger
}

// NewDashboardsHandler creates a new DashboardsHandler.
func NewDashboardsHandler(dashboardRepo repositories.DashboardRepository, logger *zap.Logger) *DashboardsHandler {
	return &DashboardsHandler{dashboardRepo: dashboardRepo, logger: logger}
}

// RegisterRoutes registers the dashboard handler's routes on the given mux.
func (h *DashboardsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboards/{dbid}", h.Get)
	mux.HandleFunc("GET /api/dashboards/{dbid}/document", h.Document)
	mux.HandleFunc("PATCH /api/dashboards/{dbid}", h.Rename)
}

// Get handles GET /api/dashboards/{dbid}.
func (h *DashboardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	dashboardID, ok := ParseDashboardID(w, r, h.logger)
	if !ok {
		return
	}

	artifact, err := h.dashboardRepo.GetByID(r.Context(), dashboardID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, toDashboardResponse(artifact)); err != nil {
		h.logger.Error("Failed to encode dashboard response", zap.Error(err))
	}
}

// Document handles GET /api/dashboards/{dbid}/document, serving the
// self-contained HTML document as-is.
func (h *DashboardsHandler) Document(w http.ResponseWriter, r *http.Request) {
	dashboardID, ok := ParseDashboardID(w, r, h.logger)
	if !ok {
		return
	}

	artifact, err := h.dashboardRepo.GetByID(r.Context(), dashboardID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(artifact.Document)); err != nil {
		h.logger.Error("Failed to write dashboard document", zap.Error(err))
	}
}

// Rename handles PATCH /api/dashboards/{dbid}. Only the name is mutable;
// the document is immutable after creation.
func (h *DashboardsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	dashboardID, ok := ParseDashboardID(w, r, h.logger)
	if !ok {
		return
	}

	var req RenameDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_name", "name is required")
		return
	}

	if err := h.dashboardRepo.Rename(r.Context(), dashboardID, strings.TrimSpace(req.Name)); err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toDashboardResponse(artifact *models.DashboardArtifact) DashboardResponse {
	return DashboardResponse{
		DashboardID: artifact.ID.String(),
		QueryID:     artifact.QueryID.String(),
		Name:        artifact.Name,
		ChartCount:  artifact.ChartCount,
		ChartTypes:  artifact.ChartTypes,
		CreatedAt:   artifact.CreatedAt.Format(time.RFC3339),
	}
}
