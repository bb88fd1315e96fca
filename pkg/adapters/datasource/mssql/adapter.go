package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	sqlpkg "github.com/askdeck-ai/askdeck-engine/pkg/sql"
)

// Adapter provides SQL Server connectivity, schema discovery and bounded
// query execution.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates a connected SQL Server adapter.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}

	return &Adapter{
		db:     db,
		logger: logger.Named("mssql"),
	}, nil
}

// TestConnection verifies the database is reachable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlserver: %w", err)
	}
	return nil
}

// Dialect reports the SQL dialect.
func (a *Adapter) Dialect() sqlpkg.Dialect {
	return sqlpkg.DialectMSSQL
}

// DiscoverSchema returns all user tables with columns, excluding system
// tables, using the sys catalog views.
func (a *Adapter) DiscoverSchema(ctx context.Context) ([]models.SchemaTable, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    c.name AS column_name,
	    tp.name AS data_type,
	    c.is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary
	FROM sys.tables t
	INNER JOIN sys.columns c ON c.object_id = t.object_id
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE t.is_ms_shipped = 0
	ORDER BY table_schema, table_name, c.column_id
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	defer rows.Close()

	var (
		tables  []models.SchemaTable
		current *models.SchemaTable
	)
	for rows.Next() {
		var (
			schemaName, tableName string
			col                   models.SchemaColumn
		)
		if err := rows.Scan(&schemaName, &tableName, &col.Name, &col.DataType, &col.IsNullable, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}

		if current == nil || current.Schema != schemaName || current.Name != tableName {
			tables = append(tables, models.SchemaTable{Schema: schemaName, Name: tableName})
			current = &tables[len(tables)-1]
		}
		current.Columns = append(current.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema rows: %w", err)
	}

	return tables, nil
}

// Query runs a read statement wrapped with the row cap.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, rowCap int) (*datasource.QueryResult, error) {
	queryToRun := sqlpkg.WrapWithRowCap(sqlQuery, sqlpkg.DialectMSSQL, rowCap)

	rows, err := a.db.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}

	columns := make([]datasource.ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = datasource.ColumnInfo{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// normalizeValue converts driver byte slices to strings so rows serialize
// as text rather than base64.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}
