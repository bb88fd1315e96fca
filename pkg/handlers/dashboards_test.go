package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

func dashboardsMux(repo *stubDashboardRepo) *http.ServeMux {
	mux := http.NewServeMux()
	NewDashboardsHandler(repo, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func sampleArtifact() *models.DashboardArtifact {
	return &models.DashboardArtifact{
		ID:         uuid.New(),
		QueryID:    uuid.New(),
		Name:       "Sales by region",
		Document:   "<!DOCTYPE html><html><body>charts</body></html>",
		ChartCount: 2,
		ChartTypes: []string{"bar", "pie"},
	}
}

func TestGetDashboard(t *testing.T) {
	artifact := sampleArtifact()
	mux := dashboardsMux(&stubDashboardRepo{artifact: artifact})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboards/"+artifact.ID.String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response DashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, artifact.ID.String(), response.DashboardID)
	assert.Equal(t, "Sales by region", response.Name)
	assert.Equal(t, []string{"bar", "pie"}, response.ChartTypes)
	// The document is only available through the document endpoint.
	assert.NotContains(t, rec.Body.String(), "DOCTYPE")
}

func TestGetDashboardNotFound(t *testing.T) {
	mux := dashboardsMux(&stubDashboardRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboards/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDashboardDocument(t *testing.T) {
	artifact := sampleArtifact()
	mux := dashboardsMux(&stubDashboardRepo{artifact: artifact})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboards/"+artifact.ID.String()+"/document", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, artifact.Document, rec.Body.String())
}

func TestRenameDashboard(t *testing.T) {
	artifact := sampleArtifact()
	repo := &stubDashboardRepo{artifact: artifact}
	mux := dashboardsMux(repo)

	body := `{"name": "  Q3 revenue  "}`
	req := httptest.NewRequest(http.MethodPatch, "/api/dashboards/"+artifact.ID.String(), strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Q3 revenue", repo.renamed)
}

func TestRenameDashboardBlankName(t *testing.T) {
	artifact := sampleArtifact()
	mux := dashboardsMux(&stubDashboardRepo{artifact: artifact})

	req := httptest.NewRequest(http.MethodPatch, "/api/dashboards/"+artifact.ID.String(), strings.NewReader(`{"name": " "}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
