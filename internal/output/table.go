package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/stats"
)

var (
	green  = lipgloss.Color("#a6e3a1")
	red    = lipgloss.Color("#f38ba8")
	yellow = lipgloss.Color("#f9e2af")
	subtle = lipgloss.Color("#a6adc8")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#74c7ec"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	passStyle   = lipgloss.NewStyle().Bold(true).Foreground(green)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(red)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtle)
	warnStyle   = lipgloss.NewStyle().Foreground(yellow)
	boxStyle    = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1)
)

const maxCellWidth = 40

// FormatTable renders results as a styled terminal table followed by the
// per-rule pass rates.
func FormatTable(results []models.ValidationResult, summary stats.Summary) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Session validation"))
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(formatTotals(summary)))
	sb.WriteString("\n\n")

	if len(results) == 0 {
		sb.WriteString(mutedStyle.Render("No sessions to validate."))
		sb.WriteString("\n")

		return sb.String()
	}

	header := []string{"SESSION", "APP", "DEVICE", "RULE", "FIELD", "EXPECTED", "ACTUAL", "RESULT"}
	rows := make([][]string, 0, len(results))

	for _, result := range results {
		if len(result.Rules) == 0 {
			rows = append(rows, []string{result.SessionID, result.AppName, result.DeviceModel, "", "", "", "", renderResult(result.Passed())})
			continue
		}

		for _, outcome := range result.Rules {
			actual := FormatValue(outcome.ActualValue)
			if outcome.ActualValue == nil {
				actual = warnStyle.Render("missing")
			}

			rows = append(rows, []string{
				result.SessionID,
				result.AppName,
				result.DeviceModel,
				outcome.RuleName,
				outcome.Field,
				string(outcome.ExpectedCondition) + " " + FormatValue(outcome.ExpectedValue),
				actual,
				renderResult(outcome.Passed),
			})
		}
	}

	sb.WriteString(renderGrid(header, rows))

	if len(summary.ByRule) > 0 {
		sb.WriteString("\n")
		sb.WriteString(titleStyle.Render("Pass rate by rule"))
		sb.WriteString("\n")

		ruleRows := make([][]string, 0, len(summary.ByRule))
		for _, rs := range summary.ByRule {
			ruleRows = append(ruleRows, []string{
				rs.RuleName,
				rs.Field,
				fmt.Sprintf("%d", rs.Passed),
				fmt.Sprintf("%d", rs.Failed),
				fmt.Sprintf("%d", rs.Missing),
				fmt.Sprintf("%.2f%%", rs.PassRate),
			})
		}

		sb.WriteString(renderGrid([]string{"RULE", "FIELD", "PASSED", "FAILED", "MISSING", "RATE"}, ruleRows))
	}

	return sb.String()
}

func formatTotals(summary stats.Summary) string {
	return fmt.Sprintf("Sessions: %d   Passed: %s   Failed: %s   Pass rate: %.2f%%",
		summary.TotalSessions,
		passStyle.Render(fmt.Sprintf("%d", summary.Passed)),
		failStyle.Render(fmt.Sprintf("%d", summary.Failed)),
		summary.PassRate)
}

func renderResult(passed bool) string {
	if passed {
		return passStyle.Render("PASS")
	}

	return failStyle.Render("FAIL")
}

// FormatGrid renders rows under a bold header with aligned columns.
func FormatGrid(header []string, rows [][]string) string {
	return renderGrid(header, rows)
}

func renderGrid(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}

	for _, row := range rows {
		for i := range row {
			row[i] = truncate(row[i])
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	writeRow(&sb, header, widths, &headerStyle)

	for _, row := range rows {
		writeRow(&sb, row, widths, nil)
	}

	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string, widths []int, style *lipgloss.Style) {
	for i, cell := range cells {
		if style != nil {
			cell = style.Render(cell)
		}

		sb.WriteString(cell)
		if i < len(cells)-1 {
			sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
		}
	}

	sb.WriteString("\n")
}

func truncate(s string) string {
	if lipgloss.Width(s) <= maxCellWidth || strings.Contains(s, "\x1b") {
		return s
	}

	runes := []rune(s)
	if len(runes) <= maxCellWidth {
		return s
	}

	return string(runes[:maxCellWidth-3]) + "..."
}
