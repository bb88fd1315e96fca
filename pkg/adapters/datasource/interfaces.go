// Package datasource defines the adapter contract for user-connected
// databases, a registry of adapter implementations and a TTL-pooled
// connection manager.
package datasource

import (
	"context"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/sql"
)

// Adapter is a live connection to a user datasource.
// Each implementation owns its connection and must be closed when done.
type Adapter interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// DiscoverSchema returns all user tables with their columns, excluding
	// system schemas.
	DiscoverSchema(ctx context.Context) ([]models.SchemaTable, error)

	// Query runs a read statement and returns bounded results. The query is
	// always wrapped with a dialect-specific row cap:
	//   - PostgreSQL: SELECT * FROM (query) AS _limited LIMIT n
	//   - SQL Server: SELECT TOP (n) * FROM (query) AS _limited
	Query(ctx context.Context, sqlQuery string, rowCap int) (*QueryResult, error)

	// Dialect reports the SQL dialect this adapter speaks.
	Dialect() sql.Dialect

	// Close releases the underlying connection pool.
	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryResult holds the results from executing a query.
type QueryResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}
