// Package repositories provides data access for the engine's own store.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/database"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// SessionRepository provides data access for conversation sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	BindDatasource(ctx context.Context, id, datasourceID uuid.UUID) error
	Archive(ctx context.Context, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID) error
}

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

var _ SessionRepository = (*sessionRepository)(nil)

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, user_id, datasource_id, title, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		session.ID, session.UserID, session.DatasourceID,
		session.Title, session.Archived, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, user_id, datasource_id, title, archived, created_at, updated_at
		FROM sessions WHERE id = $1`

	var session models.Session
	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.DatasourceID,
		&session.Title, &session.Archived, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT id, user_id, datasource_id, title, archived, created_at, updated_at
		FROM sessions
		WHERE user_id = $1 AND NOT archived
		ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID, &session.UserID, &session.DatasourceID,
			&session.Title, &session.Archived, &session.CreatedAt, &session.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("failed to update session title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// BindDatasource attaches a datasource to a session. A session's datasource
// is bound once: a second bind to an already-bound session fails.
func (r *sessionRepository) BindDatasource(ctx context.Context, id, datasourceID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET datasource_id = $2, updated_at = now()
		 WHERE id = $1 AND datasource_id IS NULL`, id, datasourceID)
	if err != nil {
		return fmt.Errorf("failed to bind datasource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing session from already-bound session.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return apperrors.ErrDatasourceBound
	}
	return nil
}

func (r *sessionRepository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET archived = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *sessionRepository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
