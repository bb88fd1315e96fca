package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
)

// maxAutoTitleChars bounds the title derived from the first user message.
const maxAutoTitleChars = 50

// SessionService manages conversation sessions.
type SessionService interface {
	Create(ctx context.Context, userID string, datasourceID *uuid.UUID) (*models.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	List(ctx context.Context, userID string) ([]*models.Session, error)
	// BindDatasource attaches a datasource to a session. A session is bound
	// at most once; rebinding fails with ErrDatasourceBound.
	BindDatasource(ctx context.Context, sessionID, datasourceID uuid.UUID) error
	Archive(ctx context.Context, id uuid.UUID) error
	// EnsureTitle derives the session title from the first user message when
	// none is set yet.
	EnsureTitle(ctx context.Context, session *models.Session, firstMessage string)
}

type sessionService struct {
	sessionRepo    repositories.SessionRepository
	datasourceRepo repositories.DatasourceRepository
	logger         *zap.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(sessionRepo repositories.SessionRepository, datasourceRepo repositories.DatasourceRepository, logger *zap.Logger) SessionService {
	return &sessionService{
		sessionRepo:    sessionRepo,
		datasourceRepo: datasourceRepo,
		logger:         logger.Named("session"),
	}
}

var _ SessionService = (*sessionService)(nil)

func (s *sessionService) Create(ctx context.Context, userID string, datasourceID *uuid.UUID) (*models.Session, error) {
	if datasourceID != nil {
		if err := s.checkDatasource(ctx, *datasourceID); err != nil {
			return nil, err
		}
	}

	session := &models.Session{
		UserID:       userID,
		DatasourceID: datasourceID,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		zap.String("sessionID", session.ID.String()),
		zap.String("userID", userID),
		zap.Bool("hasDatasource", datasourceID != nil),
	)
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.sessionRepo.GetByID(ctx, id)
}

func (s *sessionService) List(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.sessionRepo.ListByUser(ctx, userID)
}

func (s *sessionService) BindDatasource(ctx context.Context, sessionID, datasourceID uuid.UUID) error {
	if err := s.checkDatasource(ctx, datasourceID); err != nil {
		return err
	}
	return s.sessionRepo.BindDatasource(ctx, sessionID, datasourceID)
}

func (s *sessionService) Archive(ctx context.Context, id uuid.UUID) error {
	return s.sessionRepo.Archive(ctx, id)
}

func (s *sessionService) EnsureTitle(ctx context.Context, session *models.Session, firstMessage string) {
	if session.Title != "" {
		return
	}

	title := autoTitle(firstMessage)
	if title == "" {
		return
	}

	if err := s.sessionRepo.UpdateTitle(ctx, session.ID, title); err != nil {
		s.logger.Warn("failed to set session title",
			zap.String("sessionID", session.ID.String()),
			zap.Error(err),
		)
		return
	}
	session.Title = title
}

func (s *sessionService) checkDatasource(ctx context.Context, id uuid.UUID) error {
	ds, err := s.datasourceRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("datasource %s: %w", id, err)
	}
	if !ds.IsActive {
		return fmt.Errorf("datasource %s is inactive: %w", id, apperrors.ErrConflict)
	}
	return nil
}

// autoTitle derives a display title from the first user message: the first
// line, cut at 50 characters with an ellipsis.
func autoTitle(message string) string {
	title := strings.TrimSpace(message)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}

	runes := []rune(title)
	if len(runes) > maxAutoTitleChars {
		title = strings.TrimSpace(string(runes[:maxAutoTitleChars])) + "..."
	}
	return title
}
