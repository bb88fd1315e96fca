package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryExecutionRecord captures one generated query's journey through
// validation and execution. RetryCount never exceeds 1 per user request.
type QueryExecutionRecord struct {
	ID           uuid.UUID        `json:"id"`
	SessionID    uuid.UUID        `json:"session_id"`
	DatasourceID uuid.UUID        `json:"datasource_id"`
	Prompt       string           `json:"prompt"`
	SQL          string           `json:"sql"`
	Columns      []ResultColumn   `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	RetryCount   int              `json:"retry_count"`
	Status       string           `json:"status"` // "succeeded" or "failed"
	ErrorDetail  *string          `json:"error_detail,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ResultColumn describes a result-set column with a database-agnostic type name.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DashboardArtifact is a self-contained rendered visualization document.
// Document is immutable after creation; only Name may change.
type DashboardArtifact struct {
	ID         uuid.UUID `json:"id"`
	QueryID    uuid.UUID `json:"query_id"`
	Name       string    `json:"name"`
	Document   string    `json:"document"`
	ChartCount int       `json:"chart_count"`
	ChartTypes []string  `json:"chart_types"`
	CreatedAt  time.Time `json:"created_at"`
}
