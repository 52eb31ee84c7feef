package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kx0101/sessioncheck/internal/models"
)

var CSVHeader = []string{
	"session_id",
	"app_name",
	"device_model",
	"rule_name",
	"field",
	"condition",
	"expected_value",
	"actual_value",
	"result",
}

// WriteCSV flattens results to one row per rule outcome. A session without
// outcomes still gets a row carrying its overall result.
func WriteCSV(w io.Writer, results []models.ValidationResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range results {
		if len(result.Rules) == 0 {
			row := []string{result.SessionID, result.AppName, result.DeviceModel, "", "", "", "", "", result.OverallResult}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}

			continue
		}

		for _, outcome := range result.Rules {
			row := []string{
				result.SessionID,
				result.AppName,
				result.DeviceModel,
				outcome.RuleName,
				outcome.Field,
				string(outcome.ExpectedCondition),
				FormatValue(outcome.ExpectedValue),
				FormatValue(outcome.ActualValue),
				passFail(outcome.Passed),
			}

			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	return nil
}

func passFail(passed bool) string {
	if passed {
		return models.ResultPass
	}

	return models.ResultFail
}
