package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/database"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// QueryRepository provides data access for executed query records.
type QueryRepository interface {
	Save(ctx context.Context, record *models.QueryExecutionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueryExecutionRecord, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.QueryExecutionRecord, error)
}

type queryRepository struct {
	db *database.DB
}

// NewQueryRepository creates a new QueryRepository.
func NewQueryRepository(db *database.DB) QueryRepository {
	return &queryRepository{db: db}
}

var _ QueryRepository = (*queryRepository)(nil)

func (r *queryRepository) Save(ctx context.Context, record *models.QueryExecutionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()

	columnsJSON, err := json.Marshal(record.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(record.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	query := `
		INSERT INTO query_history (
			id, session_id, datasource_id, prompt, sql, columns, rows,
			row_count, elapsed_ms, retry_count, status, error_detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.Exec(ctx, query,
		record.ID, record.SessionID, record.DatasourceID, record.Prompt, record.SQL,
		columnsJSON, rowsJSON, record.RowCount, record.ElapsedMs, record.RetryCount,
		record.Status, record.ErrorDetail, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}
	return nil
}

func (r *queryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueryExecutionRecord, error) {
	query := `
		SELECT id, session_id, datasource_id, prompt, sql, columns, rows,
		       row_count, elapsed_ms, retry_count, status, error_detail, created_at
		FROM query_history WHERE id = $1`

	record, err := scanQueryRecord(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query record: %w", err)
	}
	return record, nil
}

func (r *queryRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.QueryExecutionRecord, error) {
	query := `
		SELECT id, session_id, datasource_id, prompt, sql, columns, rows,
		       row_count, elapsed_ms, retry_count, status, error_detail, created_at
		FROM query_history
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query records: %w", err)
	}
	defer rows.Close()

	var records []*models.QueryExecutionRecord
	for rows.Next() {
		record, err := scanQueryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate query records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueryRecord(row rowScanner) (*models.QueryExecutionRecord, error) {
	var (
		record      models.QueryExecutionRecord
		columnsJSON []byte
		rowsJSON    []byte
	)
	err := row.Scan(
		&record.ID, &record.SessionID, &record.DatasourceID, &record.Prompt, &record.SQL,
		&columnsJSON, &rowsJSON, &record.RowCount, &record.ElapsedMs, &record.RetryCount,
		&record.Status, &record.ErrorDetail, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(columnsJSON, &record.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &record.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	return &record, nil
}
