package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
	"github.com/askdeck-ai/askdeck-engine/pkg/schemacache"
)

const testConnectionTimeout = 10 * time.Second

// DatasourceResponse matches the frontend Datasource shape. Config is
// never echoed back; it may contain credentials.
type DatasourceResponse struct {
	DatasourceID   string `json:"datasource_id"`
	Name           string `json:"name"`
	DatasourceType string `json:"datasource_type"`
	IsActive       bool   `json:"is_active"`
	CreatedAt      string `json:"created_at"`
}

// ListDatasourcesResponse wraps the array for frontend compatibility.
type ListDatasourcesResponse struct {
	Datasources []DatasourceResponse `json:"datasources"`
}

// CreateDatasourceRequest for POST body.
type CreateDatasourceRequest struct {
	Name           string         `json:"name"`
	DatasourceType string         `json:"datasource_type"`
	Config         map[string]any `json:"config"`
}

// TestDatasourceResponse for POST test results.
type TestDatasourceResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DatasourcesHandler handles datasource registration endpoints.
type DatasourcesHandler struct {
	datasourceRepo repositories.DatasourceRepository
	connMgr        *datasource.ConnectionManager
	schemaCache    *schemacache.Cache
	logger         *zap.Logger
}

// NewDatasourcesHandler creates a new DatasourcesHandler.
func NewDatasourcesHandler(
	datasourceRepo repositories.DatasourceRepository,
	connMgr *datasource.ConnectionManager,
	schemaCache *schemacache.Cache,
	logger *zap.Logger,
) *DatasourcesHandler {
	return &DatasourcesHandler{
		datasourceRepo: datasourceRepo,
		connMgr:        connMgr,
		schemaCache:    schemaCache,
		logger:         logger,
	}
}

// RegisterRoutes registers the datasource handler's routes on the given mux.
func (h *DatasourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasource-types", h.Types)
	mux.HandleFunc("POST /api/datasources", h.Create)
	mux.HandleFunc("GET /api/datasources", h.List)
	mux.HandleFunc("DELETE /api/datasources/{dsid}", h.Deactivate)
	mux.HandleFunc("POST /api/datasources/{dsid}/test", h.Test)
}

// Types handles GET /api/datasource-types, listing the registered adapters.
func (h *DatasourcesHandler) Types(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"types": datasource.RegisteredAdapters(),
	}); err != nil {
		h.logger.Error("Failed to encode datasource types", zap.Error(err))
	}
}

// Create handles POST /api/datasources.
func (h *DatasourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_name", "name is required")
		return
	}
	if !datasource.IsRegistered(req.DatasourceType) {
		_ = ErrorResponse(w, http.StatusBadRequest, "unknown_datasource_type", "Unsupported datasource type")
		return
	}

	ds := &models.Datasource{
		Name:           req.Name,
		DatasourceType: req.DatasourceType,
		Config:         req.Config,
		IsActive:       true,
	}
	if err := h.datasourceRepo.Create(r.Context(), ds); err != nil {
		h.logger.Error("Failed to create datasource", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, toDatasourceResponse(ds)); err != nil {
		h.logger.Error("Failed to encode datasource response", zap.Error(err))
	}
}

// List handles GET /api/datasources.
func (h *DatasourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	datasources, err := h.datasourceRepo.ListActive(r.Context())
	if err != nil {
		h.logger.Error("Failed to list datasources", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	response := ListDatasourcesResponse{Datasources: make([]DatasourceResponse, 0, len(datasources))}
	for _, ds := range datasources {
		response.Datasources = append(response.Datasources, toDatasourceResponse(ds))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode datasources response", zap.Error(err))
	}
}

// Deactivate handles DELETE /api/datasources/{dsid}. The row stays for
// referential integrity; cached connections and schemas are dropped.
func (h *DatasourcesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	datasourceID, ok := ParseDatasourceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasourceRepo.Deactivate(r.Context(), datasourceID); err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	h.connMgr.Invalidate(datasourceID.String())
	h.schemaCache.Invalidate(datasourceID)

	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/datasources/{dsid}/test, verifying connectivity
// without touching the connection cache.
func (h *DatasourcesHandler) Test(w http.ResponseWriter, r *http.Request) {
	datasourceID, ok := ParseDatasourceID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.datasourceRepo.GetByID(r.Context(), datasourceID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), testConnectionTimeout)
	defer cancel()

	result := TestDatasourceResponse{Success: true}
	if err := h.testConnection(ctx, ds); err != nil {
		result = TestDatasourceResponse{Success: false, Error: err.Error()}
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode test response", zap.Error(err))
	}
}

func (h *DatasourcesHandler) testConnection(ctx context.Context, ds *models.Datasource) error {
	factory := datasource.GetFactory(ds.DatasourceType)
	if factory == nil {
		return fmt.Errorf("no adapter registered for type %q", ds.DatasourceType)
	}

	adapter, err := factory(ctx, ds.Config, h.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			h.logger.Warn("Failed to close test adapter", zap.Error(err))
		}
	}()

	return adapter.TestConnection(ctx)
}

func toDatasourceResponse(ds *models.Datasource) DatasourceResponse {
	return DatasourceResponse{
		DatasourceID:   ds.ID.String(),
		Name:           ds.Name,
		DatasourceType: ds.DatasourceType,
		IsActive:       ds.IsActive,
		CreatedAt:      ds.CreatedAt.Format(time.RFC3339),
	}
}
