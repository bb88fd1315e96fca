package dashboard

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// maxKPICards bounds the KPI strip.
const maxKPICards = 4

// maxNameChars bounds the derived artifact name.
const maxNameChars = 50

// Builder renders dashboard artifacts from executed query results.
type Builder struct {
	maxCharts int
	logger    *zap.Logger
}

// NewBuilder creates a Builder. A non-positive maxCharts uses the default.
func NewBuilder(maxCharts int, logger *zap.Logger) *Builder {
	if maxCharts <= 0 {
		maxCharts = DefaultMaxCharts
	}
	return &Builder{
		maxCharts: maxCharts,
		logger:    logger.Named("dashboard"),
	}
}

// Build produces a self-contained dashboard artifact. Zero rows yield a
// "no results" artifact rather than an error.
func (b *Builder) Build(record *models.QueryExecutionRecord) (*models.DashboardArtifact, error) {
	name := artifactName(record.Prompt)

	classified := classifyColumns(record.Columns, record.Rows)
	charts := selectCharts(classified, record.Rows, b.maxCharts)
	kpis := buildKPIs(classified, record.Rows)

	document, err := renderDocument(name, charts, kpis, record.Columns, record.Rows)
	if err != nil {
		return nil, err
	}

	chartTypes := make([]string, len(charts))
	for i, chart := range charts {
		chartTypes[i] = string(chart.Type)
	}

	b.logger.Info("dashboard built",
		zap.String("name", name),
		zap.Int("charts", len(charts)),
		zap.Int("rows", record.RowCount),
	)

	return &models.DashboardArtifact{
		QueryID:    record.ID,
		Name:       name,
		Document:   document,
		ChartCount: len(charts),
		ChartTypes: chartTypes,
	}, nil
}

// buildKPIs produces summary cards: one per metric column plus a row-count
// card. With a single result row the card shows the value itself, otherwise
// the sum across rows.
func buildKPIs(columns []classifiedColumn, rows []map[string]any) []kpiCard {
	if len(rows) == 0 {
		return nil
	}

	var cards []kpiCard
	for _, col := range columns {
		if col.role != roleMetric || len(cards) >= maxKPICards-1 {
			continue
		}

		if len(rows) == 1 {
			if value, ok := toFloat(rows[0][col.Name]); ok {
				cards = append(cards, kpiCard{Label: col.Name, Value: formatNumber(value)})
			}
			continue
		}

		total := 0.0
		counted := 0
		for _, row := range rows {
			if value, ok := toFloat(row[col.Name]); ok {
				total += value
				counted++
			}
		}
		if counted > 0 {
			cards = append(cards, kpiCard{Label: "Total " + col.Name, Value: formatNumber(total)})
		}
	}

	cards = append(cards, kpiCard{Label: "Rows", Value: strconv.Itoa(len(rows))})
	return cards
}

func formatNumber(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// artifactName derives a display name from the originating prompt.
func artifactName(prompt string) string {
	name := strings.TrimSpace(prompt)
	if idx := strings.IndexByte(name, '\n'); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	if name == "" {
		return "Dashboard"
	}

	runes := []rune(name)
	if len(runes) > maxNameChars {
		name = strings.TrimSpace(string(runes[:maxNameChars])) + "..."
	}
	return name
}
