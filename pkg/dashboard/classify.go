// Package dashboard builds self-contained HTML dashboard artifacts from
// executed query results.
package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// columnRole is the visualization role of a result column.
type columnRole int

const (
	roleDimension columnRole = iota
	roleMetric
	roleTemporal
)

type classifiedColumn struct {
	models.ResultColumn
	role columnRole
}

var numericTypeMarkers = []string{
	"INT", "FLOAT", "NUMERIC", "DECIMAL", "MONEY", "DOUBLE", "REAL", "BIGINT", "SMALLINT", "TINYINT",
}

var temporalTypeMarkers = []string{
	"DATE", "TIME", "TIMESTAMP", "DATETIME",
}

// classifyColumns assigns each result column a role, using the declared
// database type first and falling back to inspecting values across the
// row set.
func classifyColumns(columns []models.ResultColumn, rows []map[string]any) []classifiedColumn {
	classified := make([]classifiedColumn, len(columns))
	for i, col := range columns {
		classified[i] = classifiedColumn{
			ResultColumn: col,
			role:         classifyColumn(col, rows),
		}
	}
	return classified
}

func classifyColumn(col models.ResultColumn, rows []map[string]any) columnRole {
	upper := strings.ToUpper(col.Type)
	for _, marker := range temporalTypeMarkers {
		if strings.Contains(upper, marker) {
			return roleTemporal
		}
	}
	for _, marker := range numericTypeMarkers {
		if strings.Contains(upper, marker) {
			return roleMetric
		}
	}
	if upper != "" && upper != "UNKNOWN" {
		return roleDimension
	}

	// Unknown declared type: inspect the values.
	numeric, temporal, seen := 0, 0, 0
	for _, row := range rows {
		value, ok := row[col.Name]
		if !ok || value == nil {
			continue
		}
		seen++
		if _, isTime := value.(time.Time); isTime {
			temporal++
			continue
		}
		if _, ok := toFloat(value); ok {
			numeric++
		}
	}
	switch {
	case seen == 0:
		return roleDimension
	case temporal == seen:
		return roleTemporal
	case numeric == seen:
		return roleMetric
	default:
		return roleDimension
	}
}

// toFloat coerces common driver value types to float64.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool, time.Time, nil:
		return 0, false
	default:
		// Numeric driver types (e.g. arbitrary-precision decimals) print as
		// plain numbers.
		f, err := strconv.ParseFloat(fmt.Sprint(value), 64)
		return f, err == nil
	}
}

// formatValue renders a cell value for labels and tables.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
