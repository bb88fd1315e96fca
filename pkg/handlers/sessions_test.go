package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

func sessionsMux(svc *stubSessionService, repo *stubMessageRepo) (*http.ServeMux, *stubOrchestrator) {
	if repo == nil {
		repo = &stubMessageRepo{}
	}
	orch := &stubOrchestrator{}
	mux := http.NewServeMux()
	NewSessionsHandler(svc, orch, repo, zap.NewNop()).RegisterRoutes(mux)
	return mux, orch
}

func TestCreateSession(t *testing.T) {
	svc := &stubSessionService{
		createFn: func(ctx context.Context, userID string, datasourceID *uuid.UUID) (*models.Session, error) {
			return &models.Session{ID: uuid.New(), UserID: userID, DatasourceID: datasourceID}, nil
		},
	}
	mux, _ := sessionsMux(svc, nil)

	body := `{"user_id": "user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var response SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "user-1", response.UserID)
	assert.Nil(t, response.DatasourceID)
}

func TestCreateSessionMissingUser(t *testing.T) {
	mux, _ := sessionsMux(&stubSessionService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBindDatasource(t *testing.T) {
	sessionID := uuid.New()
	datasourceID := uuid.New()
	var boundTo uuid.UUID
	svc := &stubSessionService{
		bindFn: func(ctx context.Context, sid, dsid uuid.UUID) error {
			boundTo = dsid
			return nil
		},
	}
	mux, _ := sessionsMux(svc, nil)

	body := `{"datasource_id": "` + datasourceID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID.String()+"/datasource", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, datasourceID, boundTo)
}

func TestBindDatasourceAlreadyBound(t *testing.T) {
	svc := &stubSessionService{
		bindFn: func(ctx context.Context, sid, dsid uuid.UUID) error {
			return apperrors.ErrDatasourceBound
		},
	}
	mux, _ := sessionsMux(svc, nil)

	body := `{"datasource_id": "` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+uuid.NewString()+"/datasource", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListMessages(t *testing.T) {
	sessionID := uuid.New()
	sql := "SELECT 1"
	svc := &stubSessionService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Session, error) {
			return &models.Session{ID: id, UserID: "user-1"}, nil
		},
	}
	repo := &stubMessageRepo{messages: []*models.Message{
		{ID: uuid.New(), SessionID: sessionID, Role: models.RoleUser, Content: "show me all orders"},
		{ID: uuid.New(), SessionID: sessionID, Role: models.RoleAssistant, Content: "3 rows", GeneratedSQL: &sql},
		{ID: uuid.New(), SessionID: sessionID, Role: models.RoleAssistant, Content: "query failed", IsError: true},
	}}
	mux, _ := sessionsMux(svc, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID.String()+"/messages", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response ListMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	// Full history, error turns included.
	require.Len(t, response.Messages, 3)
	assert.True(t, response.Messages[2].IsError)
	require.NotNil(t, response.Messages[1].GeneratedSQL)
	assert.Equal(t, "SELECT 1", *response.Messages[1].GeneratedSQL)
}

func TestListMessagesUnknownSession(t *testing.T) {
	svc := &stubSessionService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Session, error) {
			return nil, apperrors.ErrNotFound
		},
	}
	mux, _ := sessionsMux(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString()+"/messages", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveSession(t *testing.T) {
	var archived uuid.UUID
	svc := &stubSessionService{
		archFn: func(ctx context.Context, id uuid.UUID) error {
			archived = id
			return nil
		},
	}
	mux, orch := sessionsMux(svc, nil)

	sessionID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sessionID.String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, sessionID, archived)

	// Per-session orchestration state is released with the session.
	assert.Equal(t, []uuid.UUID{sessionID}, orch.evicted)
}
