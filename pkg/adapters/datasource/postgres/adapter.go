package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	sqlpkg "github.com/askdeck-ai/askdeck-engine/pkg/sql"
)

// Adapter provides PostgreSQL connectivity, schema discovery and bounded
// query execution.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates a connected PostgreSQL adapter.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// TestConnection verifies the database is reachable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Dialect reports the SQL dialect.
func (a *Adapter) Dialect() sqlpkg.Dialect {
	return sqlpkg.DialectPostgres
}

// DiscoverSchema returns all user tables with columns, excluding system
// schemas. Primary key flags come from the table constraints.
func (a *Adapter) DiscoverSchema(ctx context.Context) ([]models.SchemaTable, error) {
	query := `
	SELECT
	    c.table_schema,
	    c.table_name,
	    c.column_name,
	    c.data_type,
	    c.is_nullable = 'YES' AS is_nullable,
	    COALESCE(pk.is_primary, false) AS is_primary
	FROM information_schema.columns c
	LEFT JOIN (
	    SELECT kcu.table_schema, kcu.table_name, kcu.column_name, true AS is_primary
	    FROM information_schema.table_constraints tc
	    JOIN information_schema.key_column_usage kcu
	      ON tc.constraint_name = kcu.constraint_name
	     AND tc.table_schema = kcu.table_schema
	    WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk ON pk.table_schema = c.table_schema
	    AND pk.table_name = c.table_name
	    AND pk.column_name = c.column_name
	WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema')
	ORDER BY c.table_schema, c.table_name, c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query)
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
	queryToRun := sqlpkg.WrapWithRowCap(sqlQuery, sqlpkg.DialectPostgres, rowCap)

	rows, err := a.pool.Query(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: string(fd.Name),
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
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

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// Covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 18:
		return "CHAR"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 114:
		return "JSON"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 790:
		return "MONEY"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1266:
		return "TIMETZ"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	case 1000:
		return "BOOL[]"
	case 1005:
		return "INT2[]"
	case 1007:
		return "INT4[]"
	case 1016:
		return "INT8[]"
	case 1009:
		return "TEXT[]"
	case 1015:
		return "VARCHAR[]"
	case 1021:
		return "FLOAT4[]"
	case 1022:
		return "FLOAT8[]"
	case 2951:
		return "UUID[]"
	case 3807:
		return "JSONB[]"
	default:
		return "UNKNOWN"
	}
}
