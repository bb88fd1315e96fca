package dashboard

import (
	"fmt"
)

// DefaultMaxCharts bounds how many charts one dashboard carries.
const DefaultMaxCharts = 5

// maxBarCategories caps category counts on bar charts so labels stay legible.
const maxBarCategories = 25

// pieCardinalityLimit is the category ceiling for adding a pie view.
const pieCardinalityLimit = 10

type chartType string

const (
	chartBar     chartType = "bar"
	chartPie     chartType = "pie"
	chartLine    chartType = "line"
	chartScatter chartType = "scatter"
)

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// chartSpec is one renderable chart. It serializes into the document and is
// consumed by the embedded chart script.
type chartSpec struct {
	ID     string    `json:"id"`
	Type   chartType `json:"type"`
	Title  string    `json:"title"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Points []point   `json:"points,omitempty"`
	XLabel string    `json:"xLabel,omitempty"`
	YLabel string    `json:"yLabel,omitempty"`
}

// selectCharts applies the chart decision table:
//   - metric over a temporal column: line
//   - metric over a categorical dimension: bar, plus a pie view when the
//     category count is small
//   - two or more metrics: scatter of the first two
//   - metrics with no dimension at all are carried by the KPI cards alone
func selectCharts(columns []classifiedColumn, rows []map[string]any, maxCharts int) []chartSpec {
	if maxCharts <= 0 {
		maxCharts = DefaultMaxCharts
	}
	if len(rows) == 0 {
		return nil
	}

	var dimensions, temporals, metrics []classifiedColumn
	for _, col := range columns {
		switch col.role {
		case roleMetric:
			metrics = append(metrics, col)
		case roleTemporal:
			temporals = append(temporals, col)
		default:
			dimensions = append(dimensions, col)
		}
	}

	var charts []chartSpec
	add := func(spec chartSpec) bool {
		if len(charts) >= maxCharts {
			return false
		}
		spec.ID = fmt.Sprintf("chart-%d", len(charts)+1)
		charts = append(charts, spec)
		return true
	}

	if len(temporals) > 0 {
		temporal := temporals[0]
		for _, metric := range metrics {
			labels, values := seriesOver(rows, temporal.Name, metric.Name)
			if len(labels) == 0 {
				continue
			}
			if !add(chartSpec{
				Type:   chartLine,
				Title:  fmt.Sprintf("%s over %s", metric.Name, temporal.Name),
				Labels: labels,
				Values: values,
				XLabel: temporal.Name,
				YLabel: metric.Name,
			}) {
				return charts
			}
		}
	}

	if len(dimensions) > 0 && len(metrics) > 0 {
		dimension := dimensions[0]
		for i, metric := range metrics {
			labels, values := aggregateBy(rows, dimension.Name, metric.Name)
			if len(labels) == 0 || len(labels) > maxBarCategories {
				continue
			}
			if !add(chartSpec{
				Type:   chartBar,
				Title:  fmt.Sprintf("%s by %s", metric.Name, dimension.Name),
				Labels: labels,
				Values: values,
				XLabel: dimension.Name,
				YLabel: metric.Name,
			}) {
				return charts
			}
			// A small category set also reads well as proportions.
			if i == 0 && len(labels) <= pieCardinalityLimit {
				if !add(chartSpec{
					Type:   chartPie,
					Title:  fmt.Sprintf("%s share by %s", metric.Name, dimension.Name),
					Labels: labels,
					Values: values,
				}) {
					return charts
				}
			}
		}
	}

	if len(metrics) >= 2 {
		x, y := metrics[0], metrics[1]
		points := scatterPoints(rows, x.Name, y.Name)
		if len(points) > 0 {
			add(chartSpec{
				Type:   chartScatter,
				Title:  fmt.Sprintf("%s vs %s", y.Name, x.Name),
				Points: points,
				XLabel: x.Name,
				YLabel: y.Name,
			})
		}
	}

	return charts
}

// seriesOver walks rows in result order, pairing the temporal label with
// the metric value.
func seriesOver(rows []map[string]any, temporalCol, metricCol string) ([]string, []float64) {
	var labels []string
	var values []float64
	for _, row := range rows {
		value, ok := toFloat(row[metricCol])
		if !ok {
			continue
		}
		labels = append(labels, formatValue(row[temporalCol]))
		values = append(values, value)
	}
	return labels, values
}

// aggregateBy groups rows by the dimension value, summing the metric, and
// preserves first-seen order.
func aggregateBy(rows []map[string]any, dimensionCol, metricCol string) ([]string, []float64) {
	var labels []string
	totals := make(map[string]float64)
	for _, row := range rows {
		value, ok := toFloat(row[metricCol])
		if !ok {
			continue
		}
		label := formatValue(row[dimensionCol])
		if _, seen := totals[label]; !seen {
			labels = append(labels, label)
		}
		totals[label] += value
	}

	values := make([]float64, len(labels))
	for i, label := range labels {
		values[i] = totals[label]
	}
	return labels, values
}

func scatterPoints(rows []map[string]any, xCol, yCol string) []point {
	var points []point
	for _, row := range rows {
		x, okX := toFloat(row[xCol])
		y, okY := toFloat(row[yCol])
		if okX && okY {
			points = append(points, point{X: x, Y: y})
		}
	}
	return points
}
