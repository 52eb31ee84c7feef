package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/stats"
)

type ReportData struct {
	GeneratedAt string
	Source      string
	RuleCount   int
	Summary     stats.Summary
	Results     []models.ValidationResult
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatValue": output.FormatValue,
	"missing":     missing,
	"resultClass": resultClass,
	"truncate":    truncate,
}).Parse(htmlTemplate))

func GenerateHTML(results []models.ValidationResult, summary stats.Summary, source string, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return RenderHTML(file, results, summary, source)
}

func RenderHTML(w io.Writer, results []models.ValidationResult, summary stats.Summary, source string) error {
	data := ReportData{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Source:      source,
		Summary:     summary,
		Results:     results,
	}

	if len(results) > 0 {
		data.RuleCount = len(results[0].Rules)
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

func missing(v any) bool {
	return v == nil
}

func resultClass(passed bool) string {
	if passed {
		return "success"
	}

	return "error"
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) > 50 {
		return string([]rune(s)[:47]) + "..."
	}

	return s
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Session Validation Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: #f5f7fa;
            color: #2d3748;
            padding: 2rem;
        }
        .container { max-width: 1400px; margin: 0 auto; }
        .header {
            background: white;
            padding: 2rem;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            margin-bottom: 2rem;
        }
        h1 { color: #1a202c; font-size: 2rem; margin-bottom: 0.5rem; }
        .meta { color: #718096; font-size: 0.9rem; }
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }
        .stat-card {
            background: white;
            padding: 1.5rem;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        .stat-value { font-size: 2rem; font-weight: bold; margin-bottom: 0.25rem; }
        .stat-label { color: #718096; font-size: 0.875rem; }
        .stat-value.success { color: #48bb78; }
        .stat-value.error { color: #f56565; }
        .section {
            background: white;
            padding: 1.5rem;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            margin-bottom: 2rem;
            overflow-x: auto;
        }
        .section-title { font-size: 1.25rem; font-weight: 600; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 0.75rem 1rem; text-align: left; border-bottom: 1px solid #e2e8f0; vertical-align: top; }
        th {
            background: #f7fafc;
            font-weight: 600;
            color: #4a5568;
            font-size: 0.875rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
            white-space: nowrap;
        }
        tr:hover { background: #f7fafc; }
        .status-badge {
            display: inline-block;
            padding: 0.25rem 0.75rem;
            border-radius: 9999px;
            font-size: 0.875rem;
            font-weight: 500;
        }
        .status-success { background: #c6f6d5; color: #22543d; }
        .status-error { background: #fed7d7; color: #742a2a; }
        .code {
            background: #f7fafc;
            padding: 0.25rem 0.5rem;
            border-radius: 3px;
            font-family: 'Menlo', 'Monaco', 'Courier New', monospace;
            font-size: 0.85rem;
        }
        .missing { color: #a0aec0; font-style: italic; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Session Validation Report</h1>
            <div class="meta">
                Generated: {{.GeneratedAt}}{{if .Source}} | Source: {{.Source}}{{end}} | Rules: {{.RuleCount}}
            </div>
        </div>

        <div class="stats-grid">
            <div class="stat-card">
                <div class="stat-value">{{.Summary.TotalSessions}}</div>
                <div class="stat-label">Sessions</div>
            </div>
            <div class="stat-card">
                <div class="stat-value success">{{.Summary.Passed}}</div>
                <div class="stat-label">Passed</div>
            </div>
            <div class="stat-card">
                <div class="stat-value error">{{.Summary.Failed}}</div>
                <div class="stat-label">Failed</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{printf "%.2f" .Summary.PassRate}}%</div>
                <div class="stat-label">Pass Rate</div>
            </div>
        </div>

        {{if .Summary.ByRule}}
        <div class="section">
            <div class="section-title">Rules</div>
            <table>
                <thead>
                    <tr><th>Rule</th><th>Field</th><th>Passed</th><th>Failed</th><th>Missing Data</th><th>Pass Rate</th></tr>
                </thead>
                <tbody>
                {{range .Summary.ByRule}}
                    <tr>
                        <td>{{.RuleName}}</td>
                        <td><span class="code">{{.Field}}</span></td>
                        <td>{{.Passed}}</td>
                        <td>{{.Failed}}</td>
                        <td>{{.Missing}}</td>
                        <td>{{printf "%.2f" .PassRate}}%</td>
                    </tr>
                {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        {{range .Results}}
        <div class="section">
            <div class="section-title">
                {{truncate .SessionID}}
                <span class="status-badge status-{{resultClass .Passed}}">{{.OverallResult}}</span>
            </div>
            <div class="meta">App: {{.AppName}} | Device: {{.DeviceModel}}</div>
            {{if .Rules}}
            <table>
                <thead>
                    <tr><th>Rule</th><th>Field</th><th>Condition</th><th>Expected</th><th>Actual</th><th>Result</th></tr>
                </thead>
                <tbody>
                {{range .Rules}}
                    <tr>
                        <td>{{.RuleName}}</td>
                        <td><span class="code">{{.Field}}</span></td>
                        <td>{{.ExpectedCondition}}</td>
                        <td>{{formatValue .ExpectedValue}}</td>
                        <td>{{if missing .ActualValue}}<span class="missing">missing</span>{{else}}{{formatValue .ActualValue}}{{end}}</td>
                        <td><span class="status-badge status-{{resultClass .Passed}}">{{if .Passed}}pass{{else}}fail{{end}}</span></td>
                    </tr>
                {{end}}
                </tbody>
            </table>
            {{end}}
        </div>
        {{end}}
    </div>
</body>
</html>
`
