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

// DatasourceRepository provides data access for registered datasources.
type DatasourceRepository interface {
	Create(ctx context.Context, ds *models.Datasource) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error)
	ListActive(ctx context.Context) ([]*models.Datasource, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type datasourceRepository struct {
	db *database.DB
}

// NewDatasourceRepository creates a new DatasourceRepository.
func NewDatasourceRepository(db *database.DB) DatasourceRepository {
	return &datasourceRepository{db: db}
}

var _ DatasourceRepository = (*datasourceRepository)(nil)

func (r *datasourceRepository) Create(ctx context.Context, ds *models.Datasource) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	configJSON, err := json.Marshal(ds.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		INSERT INTO datasources (id, name, datasource_type, config, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		ds.ID, ds.Name, ds.DatasourceType, configJSON, ds.IsActive, ds.CreatedAt, ds.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert datasource: %w", err)
	}
	return nil
}

func (r *datasourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	query := `
		SELECT id, name, datasource_type, config, is_active, created_at, updated_at
		FROM datasources WHERE id = $1`

	var (
		ds         models.Datasource
		configJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ds.ID, &ds.Name, &ds.DatasourceType, &configJSON,
		&ds.IsActive, &ds.CreatedAt, &ds.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get datasource: %w", err)
	}

	if err := json.Unmarshal(configJSON, &ds.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &ds, nil
}

func (r *datasourceRepository) ListActive(ctx context.Context) ([]*models.Datasource, error) {
	query := `
		SELECT id, name, datasource_type, config, is_active, created_at, updated_at
		FROM datasources
		WHERE is_active
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer rows.Close()

	var datasources []*models.Datasource
	for rows.Next() {
		var (
			ds         models.Datasource
			configJSON []byte
		)
		if err := rows.Scan(
			&ds.ID, &ds.Name, &ds.DatasourceType, &configJSON,
			&ds.IsActive, &ds.CreatedAt, &ds.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		if err := json.Unmarshal(configJSON, &ds.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		datasources = append(datasources, &ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate datasources: %w", err)
	}
	return datasources, nil
}

func (r *datasourceRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE datasources SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate datasource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
