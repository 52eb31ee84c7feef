package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/stats"
)

type Report struct {
	Results []models.ValidationResult `json:"results"`
	Summary stats.Summary             `json:"summary"`
}

func WriteJSON(w io.Writer, results []models.ValidationResult, summary stats.Summary) error {
	if results == nil {
		results = []models.ValidationResult{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Report{Results: results, Summary: summary}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
