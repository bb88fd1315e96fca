package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

func salesByRegion() *models.QueryExecutionRecord {
	return &models.QueryExecutionRecord{
		Prompt: "show me sales by region",
		Columns: []models.ResultColumn{
			{Name: "region", Type: "TEXT"},
			{Name: "total_sales", Type: "NUMERIC"},
		},
		Rows: []map[string]any{
			{"region": "north", "total_sales": float64(1200)},
			{"region": "south", "total_sales": float64(800)},
			{"region": "west", "total_sales": float64(1500)},
		},
		RowCount: 3,
	}
}

func TestClassifyColumns(t *testing.T) {
	columns := []models.ResultColumn{
		{Name: "region", Type: "VARCHAR"},
		{Name: "total", Type: "NUMERIC"},
		{Name: "day", Type: "DATE"},
		{Name: "mystery", Type: "UNKNOWN"},
	}
	rows := []map[string]any{
		{"region": "north", "total": 10.0, "day": time.Now(), "mystery": int64(5)},
		{"region": "south", "total": 20.0, "day": time.Now(), "mystery": int64(7)},
	}

	classified := classifyColumns(columns, rows)
	assert.Equal(t, roleDimension, classified[0].role)
	assert.Equal(t, roleMetric, classified[1].role)
	assert.Equal(t, roleTemporal, classified[2].role)
	assert.Equal(t, roleMetric, classified[3].role, "unknown type classified by values")
}

func TestSelectChartsBarAndPie(t *testing.T) {
	record := salesByRegion()
	classified := classifyColumns(record.Columns, record.Rows)

	charts := selectCharts(classified, record.Rows, DefaultMaxCharts)
	require.Len(t, charts, 2)
	assert.Equal(t, chartBar, charts[0].Type)
	assert.Equal(t, chartPie, charts[1].Type, "small category set gets a pie view")
	assert.Equal(t, []string{"north", "south", "west"}, charts[0].Labels)
	assert.Equal(t, []float64{1200, 800, 1500}, charts[0].Values)
}

func TestSelectChartsLineOverTime(t *testing.T) {
	columns := []models.ResultColumn{
		{Name: "month", Type: "DATE"},
		{Name: "revenue", Type: "NUMERIC"},
	}
	rows := []map[string]any{
		{"month": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "revenue": 100.0},
		{"month": time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "revenue": 140.0},
	}

	charts := selectCharts(classifyColumns(columns, rows), rows, DefaultMaxCharts)
	require.NotEmpty(t, charts)
	assert.Equal(t, chartLine, charts[0].Type)
	assert.Equal(t, []string{"2026-01-01", "2026-02-01"}, charts[0].Labels)
}

func TestSelectChartsScatterForTwoMetrics(t *testing.T) {
	columns := []models.ResultColumn{
		{Name: "price", Type: "NUMERIC"},
		{Name: "quantity", Type: "INT4"},
	}
	rows := []map[string]any{
		{"price": 9.5, "quantity": int64(3)},
		{"price": 20.0, "quantity": int64(1)},
	}

	charts := selectCharts(classifyColumns(columns, rows), rows, DefaultMaxCharts)
	require.Len(t, charts, 1)
	assert.Equal(t, chartScatter, charts[0].Type)
	assert.Len(t, charts[0].Points, 2)
}

func TestSelectChartsRespectsMax(t *testing.T) {
	columns := []models.ResultColumn{
		{Name: "day", Type: "DATE"},
		{Name: "region", Type: "TEXT"},
		{Name: "m1", Type: "NUMERIC"},
		{Name: "m2", Type: "NUMERIC"},
		{Name: "m3", Type: "NUMERIC"},
	}
	rows := []map[string]any{
		{"day": time.Now(), "region": "north", "m1": 1.0, "m2": 2.0, "m3": 3.0},
		{"day": time.Now(), "region": "south", "m1": 4.0, "m2": 5.0, "m3": 6.0},
	}

	charts := selectCharts(classifyColumns(columns, rows), rows, 2)
	assert.Len(t, charts, 2)
}

func TestSelectChartsZeroRows(t *testing.T) {
	record := salesByRegion()
	charts := selectCharts(classifyColumns(record.Columns, nil), nil, DefaultMaxCharts)
	assert.Empty(t, charts)
}

func TestBuild(t *testing.T) {
	builder := NewBuilder(DefaultMaxCharts, zap.NewNop())

	artifact, err := builder.Build(salesByRegion())
	require.NoError(t, err)

	assert.Equal(t, "show me sales by region", artifact.Name)
	assert.Equal(t, 2, artifact.ChartCount)
	assert.Equal(t, []string{"bar", "pie"}, artifact.ChartTypes)

	assert.Contains(t, artifact.Document, "chart.js")
	assert.Contains(t, artifact.Document, "chart-1")
	assert.Contains(t, artifact.Document, "table-filter")
	assert.Contains(t, artifact.Document, "north")
	assert.Contains(t, artifact.Document, "Total total_sales")
}

func TestBuildNoResults(t *testing.T) {
	builder := NewBuilder(DefaultMaxCharts, zap.NewNop())

	artifact, err := builder.Build(&models.QueryExecutionRecord{
		Prompt:  "orders from the year 3000",
		Columns: []models.ResultColumn{{Name: "id", Type: "UUID"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, artifact.ChartCount)
	assert.Contains(t, artifact.Document, "No results to display")
}

func TestBuildKPIsSingleRow(t *testing.T) {
	columns := classifyColumns(
		[]models.ResultColumn{{Name: "count", Type: "INT8"}},
		[]map[string]any{{"count": int64(42)}},
	)
	cards := buildKPIs(columns, []map[string]any{{"count": int64(42)}})

	require.Len(t, cards, 2)
	assert.Equal(t, "count", cards[0].Label)
	assert.Equal(t, "42", cards[0].Value)
	assert.Equal(t, "Rows", cards[1].Label)
}

func TestArtifactNameTruncation(t *testing.T) {
	long := strings.Repeat("sales and revenue ", 10)
	name := artifactName(long)
	assert.True(t, strings.HasSuffix(name, "..."))
	assert.LessOrEqual(t, len([]rune(name)), maxNameChars+3)

	assert.Equal(t, "Dashboard", artifactName("   "))
}
