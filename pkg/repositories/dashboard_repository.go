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

// DashboardRepository provides data access for dashboard artifacts.
type DashboardRepository interface {
	Save(ctx context.Context, artifact *models.DashboardArtifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DashboardArtifact, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
}

type dashboardRepository struct {
	db *database.DB
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(db *database.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

var _ DashboardRepository = (*dashboardRepository)(nil)

func (r *dashboardRepository) Save(ctx context.Context, artifact *models.DashboardArtifact) error {
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	artifact.CreatedAt = time.Now()

	chartTypesJSON, err := json.Marshal(artifact.ChartTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal chart types: %w", err)
	}

	query := `
		INSERT INTO dashboards (id, query_id, name, document, chart_count, chart_types, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		artifact.ID, artifact.QueryID, artifact.Name, artifact.Document,
		artifact.ChartCount, chartTypesJSON, artifact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dashboard: %w", err)
	}
	return nil
}

func (r *dashboardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DashboardArtifact, error) {
	query := `
		SELECT id, query_id, name, document, chart_count, chart_types, created_at
		FROM dashboards WHERE id = $1`

	var (
		artifact       models.DashboardArtifact
		chartTypesJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&artifact.ID, &artifact.QueryID, &artifact.Name, &artifact.Document,
		&artifact.ChartCount, &chartTypesJSON, &artifact.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}

	if err := json.Unmarshal(chartTypesJSON, &artifact.ChartTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart types: %w", err)
	}
	return &artifact, nil
}

func (r *dashboardRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE dashboards SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to rename dashboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
