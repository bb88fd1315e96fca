package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askdeck-ai/askdeck-engine/pkg/database"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// MessageRepository provides data access for conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)
	// ListRecent returns up to limit non-error messages for a session,
	// oldest first.
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error)
}

type messageRepository struct {
	db *database.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *database.DB) MessageRepository {
	return &messageRepository{db: db}
}

var _ MessageRepository = (*messageRepository)(nil)

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = time.Now()

	query := `
		INSERT INTO messages (id, session_id, role, content, is_error, generated_sql, query_id, dashboard_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		message.ID, message.SessionID, message.Role, message.Content,
		message.IsError, message.GeneratedSQL, message.QueryID, message.DashboardID,
		message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT id, session_id, role, content, is_error, generated_sql, query_id, dashboard_id, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at`

	return r.queryMessages(ctx, query, sessionID)
}

func (r *messageRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error) {
	// Newest N, excluding error messages, re-ordered oldest first.
	query := `
		SELECT id, session_id, role, content, is_error, generated_sql, query_id, dashboard_id, created_at
		FROM (
			SELECT id, session_id, role, content, is_error, generated_sql, query_id, dashboard_id, created_at
			FROM messages
			WHERE session_id = $1 AND NOT is_error
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at`

	return r.queryMessages(ctx, query, sessionID, limit)
}

func (r *messageRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID, &message.SessionID, &message.Role, &message.Content,
			&message.IsError, &message.GeneratedSQL, &message.QueryID, &message.DashboardID,
			&message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
