package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// maxTableRows caps how many rows the embedded data table shows.
const maxTableRows = 20

type kpiCard struct {
	Label string
	Value string
}

type documentData struct {
	Title     string
	Empty     bool
	KPIs      []kpiCard
	GridClass string
	ChartIDs  []string
	ChartJSON template.JS
	Columns   []string
	TableRows [][]string
	RowCount  int
	Truncated bool
}

var documentTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"></script>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; background: #f5f6f8; color: #1f2430; }
  header { padding: 16px 24px; background: #fff; border-bottom: 1px solid #e3e6ea; }
  header h1 { margin: 0; font-size: 18px; }
  main { padding: 24px; max-width: 1200px; margin: 0 auto; }
  .kpis { display: flex; gap: 16px; flex-wrap: wrap; margin-bottom: 24px; }
  .kpi { background: #fff; border: 1px solid #e3e6ea; border-radius: 8px; padding: 16px 20px; min-width: 160px; }
  .kpi .label { font-size: 12px; color: #6b7280; text-transform: uppercase; }
  .kpi .value { font-size: 24px; font-weight: 600; margin-top: 4px; }
  .charts { display: grid; gap: 16px; margin-bottom: 24px; }
  .charts.grid-1 { grid-template-columns: 1fr; }
  .charts.grid-2 { grid-template-columns: repeat(2, 1fr); }
  .charts.grid-3 { grid-template-columns: repeat(3, 1fr); }
  .charts.grid-4 { grid-template-columns: repeat(2, 1fr); }
  .charts.grid-5, .charts.grid-6 { grid-template-columns: repeat(3, 1fr); }
  .chart-card { background: #fff; border: 1px solid #e3e6ea; border-radius: 8px; padding: 16px; min-height: 280px; }
  .table-card { background: #fff; border: 1px solid #e3e6ea; border-radius: 8px; padding: 16px; }
  .table-card input { width: 100%; box-sizing: border-box; padding: 8px; margin-bottom: 12px; border: 1px solid #d1d5db; border-radius: 6px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #eef0f3; white-space: nowrap; }
  th { color: #6b7280; font-weight: 600; }
  .note { color: #6b7280; font-size: 12px; margin-top: 8px; }
  .empty { background: #fff; border: 1px solid #e3e6ea; border-radius: 8px; padding: 48px; text-align: center; color: #6b7280; }
</style>
</head>
<body>
<header><h1>{{.Title}}</h1></header>
<main>
{{if .Empty}}
  <div class="empty">No results to display for this query.</div>
{{else}}
  {{if .KPIs}}
  <section class="kpis">
    {{range .KPIs}}<div class="kpi"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}
  </section>
  {{end}}
  {{if .ChartIDs}}
  <section class="charts {{.GridClass}}">
    {{range .ChartIDs}}<div class="chart-card"><canvas id="{{.}}"></canvas></div>{{end}}
  </section>
  {{end}}
  <section class="table-card">
    <input id="table-filter" type="text" placeholder="Filter rows...">
    <table id="data-table">
      <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
      <tbody>
        {{range .TableRows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
        {{end}}
      </tbody>
    </table>
    {{if .Truncated}}<div class="note">Showing first {{len .TableRows}} of {{.RowCount}} rows.</div>{{end}}
  </section>
  <script>
  const specs = {{.ChartJSON}};
  const palette = ["#4e79a7", "#f28e2b", "#59a14f", "#e15759", "#76b7b2", "#edc948", "#b07aa1", "#ff9da7"];
  specs.forEach(function (spec) {
    const ctx = document.getElementById(spec.id);
    if (!ctx) return;
    let data;
    if (spec.type === "scatter") {
      data = { datasets: [{ label: spec.title, data: spec.points, backgroundColor: palette[0] }] };
    } else if (spec.type === "pie") {
      data = { labels: spec.labels, datasets: [{ data: spec.values, backgroundColor: palette }] };
    } else {
      data = { labels: spec.labels, datasets: [{ label: spec.yLabel || spec.title, data: spec.values,
        backgroundColor: palette[0], borderColor: palette[0], fill: false, tension: 0.2 }] };
    }
    new Chart(ctx, {
      type: spec.type,
      data: data,
      options: {
        responsive: true,
        plugins: { title: { display: true, text: spec.title }, tooltip: { enabled: true } }
      }
    });
  });
  const filter = document.getElementById("table-filter");
  filter.addEventListener("input", function () {
    const needle = filter.value.toLowerCase();
    document.querySelectorAll("#data-table tbody tr").forEach(function (row) {
      row.style.display = row.textContent.toLowerCase().includes(needle) ? "" : "none";
    });
  });
  </script>
{{end}}
</main>
</body>
</html>
`))

// renderDocument produces the self-contained HTML document.
func renderDocument(title string, charts []chartSpec, kpis []kpiCard, columns []models.ResultColumn, rows []map[string]any) (string, error) {
	data := documentData{
		Title:    title,
		Empty:    len(rows) == 0,
		KPIs:     kpis,
		RowCount: len(rows),
	}

	if !data.Empty {
		data.GridClass = fmt.Sprintf("grid-%d", len(charts))
		for _, chart := range charts {
			data.ChartIDs = append(data.ChartIDs, chart.ID)
		}

		chartJSON, err := json.Marshal(charts)
		if err != nil {
			return "", fmt.Errorf("marshal chart specs: %w", err)
		}
		data.ChartJSON = template.JS(chartJSON)

		for _, col := range columns {
			data.Columns = append(data.Columns, col.Name)
		}
		limit := len(rows)
		if limit > maxTableRows {
			limit = maxTableRows
			data.Truncated = true
		}
		for _, row := range rows[:limit] {
			cells := make([]string, len(columns))
			for i, col := range columns {
				cells[i] = formatValue(row[col.Name])
			}
			data.TableRows = append(data.TableRows, cells)
		}
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render dashboard: %w", err)
	}
	return buf.String(), nil
}
