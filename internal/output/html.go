package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/runner"
	"github.com/torosent/crankbench/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Report      ReportJSON
	Columns     []string
	Rows        []HTMLRow
	Steps       int64
	Thresholds  ThresholdSummary
}

// HTMLRow is one result row with its cells in column order.
type HTMLRow struct {
	Failed bool
	Cells  []HTMLCell
}

// HTMLCell is one rendered table cell.
type HTMLCell struct {
	Text  string
	Right bool
}

// GenerateHTMLReport generates a standalone HTML report of a batch.
func GenerateHTMLReport(w io.Writer, rep runner.Report, thresholds []threshold.Report) error {
	data := HTMLReportData{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Report:      NewReportJSON(rep, thresholds),
		Columns:     measure.Columns(rep.Rows()),
	}

	for _, o := range rep.Outcomes {
		row := HTMLRow{Failed: o.Failed(), Cells: make([]HTMLCell, len(data.Columns))}
		for i, col := range data.Columns {
			if v, ok := o.Row.Get(col); ok {
				row.Cells[i] = HTMLCell{Text: measure.Format(v), Right: v.RightAligned()}
			}
		}
		data.Rows = append(data.Rows, row)
		if o.Stats != nil {
			data.Steps += o.Stats.Steps
		}
	}
	for _, t := range data.Report.Tests {
		if t.Thresholds == nil {
			continue
		}
		data.Thresholds.Total += t.Thresholds.Total
		data.Thresholds.Passed += t.Thresholds.Passed
		data.Thresholds.Failed += t.Thresholds.Failed
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatMs": func(f float64) string {
			return fmt.Sprintf("%.3f ms", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Crankbench Report {{.Report.RunID}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; color: #2c3e50; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        table { width: 100%; border-collapse: collapse; background: white; }
        th, td { text-align: left; padding: 12px; border-bottom: 1px solid #e5e7eb; }
        td.num { text-align: right; font-variant-numeric: tabular-nums; }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            letter-spacing: 0.5px;
        }
        tr:hover { background: #f8f9fa; }
        tr.failed td { background: #fef2f2; }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .no-data { text-align: center; padding: 40px; color: #6c757d; font-style: italic; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Crankbench Report</h1>
            <div class="meta">Run {{.Report.RunID}} | Mode: {{.Report.Mode}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatMs .Report.DurationMs}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Tests</h3>
                    <div class="value">{{len .Report.Tests}}</div>
                </div>
                <div class="card {{if .Report.Failed}}error{{else}}success{{end}}">
                    <h3>Failed</h3>
                    <div class="value">{{.Report.Failed}}</div>
                </div>
                <div class="card">
                    <h3>Measured Steps</h3>
                    <div class="value">{{.Steps}}</div>
                </div>
                {{if .Thresholds.Total}}
                <div class="card {{if .Thresholds.Failed}}error{{else}}success{{end}}">
                    <h3>Thresholds</h3>
                    <div class="value">{{.Thresholds.Passed}}/{{.Thresholds.Total}}</div>
                </div>
                {{end}}
            </div>

            <div class="section">
                <h2>Results</h2>
                {{if .Rows}}
                <table>
                    <thead>
                        <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
                    </thead>
                    <tbody>
                        {{range .Rows}}
                        <tr{{if .Failed}} class="failed"{{end}}>{{range .Cells}}<td{{if .Right}} class="num"{{end}}>{{.Text}}</td>{{end}}</tr>
                        {{end}}
                    </tbody>
                </table>
                {{else}}
                <div class="no-data">No tests were run.</div>
                {{end}}
            </div>

            <div class="section">
                <h2>Step Statistics</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Test</th>
                            <th>Steps</th>
                            <th>Failures</th>
                            <th>Min</th>
                            <th>P50</th>
                            <th>P90</th>
                            <th>P95</th>
                            <th>P99</th>
                            <th>Max</th>
                            <th>Steps/sec</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Tests}}{{if .Stats}}
                        <tr>
                            <td><strong>{{.Name}}</strong></td>
                            <td class="num">{{.Stats.Steps}}</td>
                            <td class="num">{{.Stats.Failures}}</td>
                            <td class="num">{{formatMs .Stats.MinMs}}</td>
                            <td class="num">{{formatMs .Stats.P50Ms}}</td>
                            <td class="num">{{formatMs .Stats.P90Ms}}</td>
                            <td class="num">{{formatMs .Stats.P95Ms}}</td>
                            <td class="num">{{formatMs .Stats.P99Ms}}</td>
                            <td class="num">{{formatMs .Stats.MaxMs}}</td>
                            <td class="num">{{formatFloat .Stats.StepsPerSec}}</td>
                        </tr>
                        {{end}}{{end}}
                    </tbody>
                </table>
            </div>

            {{if .Thresholds.Total}}
            <div class="section">
                <h2>Thresholds ({{.Thresholds.Passed}}/{{.Thresholds.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Test</th>
                            <th>Threshold</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Tests}}{{$test := .Name}}{{if .Thresholds}}{{range .Thresholds.Results}}
                        <tr>
                            <td>{{$test}}</td>
                            <td>{{.Threshold}}</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}{{end}}{{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.Failed}}
            <div class="section">
                <h2>Failures</h2>
                <table>
                    <thead>
                        <tr><th>Test</th><th>Error</th></tr>
                    </thead>
                    <tbody>
                        {{range .Report.Tests}}{{if .Error}}
                        <tr class="failed"><td><strong>{{.Name}}</strong></td><td>{{.Error}}</td></tr>
                        {{end}}{{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
