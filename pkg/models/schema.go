package models

import (
	"time"

	"github.com/google/uuid"
)

// SchemaColumn describes one column of a discovered table.
type SchemaColumn struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// SchemaTable describes one discovered table with its columns, in
// discovery order.
type SchemaTable struct {
	Schema  string         `json:"schema"`
	Name    string         `json:"name"`
	Columns []SchemaColumn `json:"columns"`
}

// SchemaDescriptor is the cached structural metadata for a datasource.
// Stale is set when the descriptor outlived its TTL but a refresh failed;
// callers may still use it.
type SchemaDescriptor struct {
	DatasourceID uuid.UUID     `json:"datasource_id"`
	DatabaseKind string        `json:"database_kind"` // "postgres", "mssql"
	Tables       []SchemaTable `json:"tables"`
	FetchedAt    time.Time     `json:"fetched_at"`
	Stale        bool          `json:"stale"`
}

// TableCount returns the number of tables in the descriptor.
func (d *SchemaDescriptor) TableCount() int {
	return len(d.Tables)
}
