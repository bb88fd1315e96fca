package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
	"github.com/askdeck-ai/askdeck-engine/pkg/services"
)

// stubSessionService is a function-field stub for SessionService.
type stubSessionService struct {
	createFn func(ctx context.Context, userID string, datasourceID *uuid.UUID) (*models.Session, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.Session, error)
	listFn   func(ctx context.Context, userID string) ([]*models.Session, error)
	bindFn   func(ctx context.Context, sessionID, datasourceID uuid.UUID) error
	archFn   func(ctx context.Context, id uuid.UUID) error
}

var _ services.SessionService = (*stubSessionService)(nil)

func (s *stubSessionService) Create(ctx context.Context, userID string, datasourceID *uuid.UUID) (*models.Session, error) {
	return s.createFn(ctx, userID, datasourceID)
}

func (s *stubSessionService) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.getFn(ctx, id)
}

func (s *stubSessionService) List(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.listFn(ctx, userID)
}

func (s *stubSessionService) BindDatasource(ctx context.Context, sessionID, datasourceID uuid.UUID) error {
	return s.bindFn(ctx, sessionID, datasourceID)
}

func (s *stubSessionService) Archive(ctx context.Context, id uuid.UUID) error {
	return s.archFn(ctx, id)
}

func (s *stubSessionService) EnsureTitle(ctx context.Context, session *models.Session, firstMessage string) {
}

// stubOrchestrator returns a canned envelope.
type stubOrchestrator struct {
	envelope      *models.ResponseEnvelope
	err           error
	gotText       string
	gotUser       string
	gotDatasource *uuid.UUID
	evicted       []uuid.UUID
}

var _ services.Orchestrator = (*stubOrchestrator)(nil)

func (s *stubOrchestrator) Handle(ctx context.Context, sessionID uuid.UUID, userID, text string, datasourceID *uuid.UUID) (*models.ResponseEnvelope, error) {
	s.gotUser = userID
	s.gotText = text
	s.gotDatasource = datasourceID
	if s.err != nil {
		return nil, s.err
	}
	return s.envelope, nil
}

func (s *stubOrchestrator) EvictSession(sessionID uuid.UUID) {
	s.evicted = append(s.evicted, sessionID)
}

// stubMessageRepo serves a fixed message list.
type stubMessageRepo struct {
	messages []*models.Message
}

var _ repositories.MessageRepository = (*stubMessageRepo)(nil)

func (s *stubMessageRepo) Create(ctx context.Context, message *models.Message) error {
	s.messages = append(s.messages, message)
	return nil
}

func (s *stubMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	return s.messages, nil
}

func (s *stubMessageRepo) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error) {
	return s.messages, nil
}

// stubDashboardRepo serves a single artifact.
type stubDashboardRepo struct {
	artifact *models.DashboardArtifact
	renamed  string
}

var _ repositories.DashboardRepository = (*stubDashboardRepo)(nil)

func (s *stubDashboardRepo) Save(ctx context.Context, artifact *models.DashboardArtifact) error {
	s.artifact = artifact
	return nil
}

func (s *stubDashboardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DashboardArtifact, error) {
	if s.artifact == nil || s.artifact.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return s.artifact, nil
}

func (s *stubDashboardRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	if s.artifact == nil || s.artifact.ID != id {
		return apperrors.ErrNotFound
	}
	s.renamed = name
	return nil
}
