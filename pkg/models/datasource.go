package models

import (
	"time"

	"github.com/google/uuid"
)

// Datasource represents a registered external database connection.
// Config holds connection details (host, port, user, password, database);
// structure varies by type.
type Datasource struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	DatasourceType string         `json:"datasource_type"` // "postgres", "mssql"
	Config         map[string]any `json:"config"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
