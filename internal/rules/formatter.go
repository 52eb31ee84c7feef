package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
)

func FormatResults(results []models.ValidationResult) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString("             SESSION VALIDATION RESULTS\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	failed := 0
	for _, r := range results {
		if !r.Passed() {
			failed++
		}
	}

	if failed == 0 {
		sb.WriteString(fmt.Sprintf("PASSED - %d session(s) satisfied all rules\n", len(results)))
		sb.WriteString("═══════════════════════════════════════════════════════\n")

		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("FAILED - %d of %d session(s) failed validation\n", failed, len(results)))
	sb.WriteString("\n")

	for _, result := range results {
		if result.Passed() {
			continue
		}

		sb.WriteString("───────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Session: %s\n", result.SessionID))
		sb.WriteString("───────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("App:     %s\n", result.AppName))
		sb.WriteString(fmt.Sprintf("Device:  %s\n", result.DeviceModel))
		sb.WriteString("\nFailed rules:\n")

		for _, outcome := range result.Rules {
			if outcome.Passed {
				continue
			}

			actual := output.FormatValue(outcome.ActualValue)
			if outcome.ActualValue == nil {
				actual = "<missing>"
			}

			sb.WriteString(fmt.Sprintf("  %s: %s %s %s (actual: %s)\n",
				outcome.RuleName, outcome.Field, outcome.ExpectedCondition,
				output.FormatValue(outcome.ExpectedValue), actual))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("═══════════════════════════════════════════════════════\n")

	return sb.String()
}

func FormatResultsJSON(results []models.ValidationResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	return string(data), nil
}

func GetExitCode(results []models.ValidationResult) cli.ExitCode {
	if AllPassed(results) {
		return cli.ExitOK
	}

	return cli.ExitRules
}
