package sql

import "fmt"

// Dialect selects the row-cap syntax for a target database.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMSSQL    Dialect = "mssql"
)

// WrapWithRowCap bounds a validated query by wrapping it in a capped outer
// select. Wrapping is unconditional: an inner LIMIT or TOP smaller than the
// cap still wins, and an inner bound larger than the cap is clamped.
func WrapWithRowCap(sqlQuery string, dialect Dialect, cap int) string {
	if cap <= 0 {
		return sqlQuery
	}

	switch dialect {
	case DialectMSSQL:
		return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", cap, sqlQuery)
	default:
		return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, cap)
	}
}
