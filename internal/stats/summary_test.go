package stats

import (
	"testing"

	"github.com/kx0101/sessioncheck/internal/models"
)

func TestSummarize(t *testing.T) {
	results := []models.ValidationResult{
		{
			OverallResult: models.ResultPass,
			Rules: []models.RuleOutcome{
				{RuleID: "1", RuleName: "Min FPS", Field: "fps.min", ActualValue: 40.0, Passed: true},
				{RuleID: "2", RuleName: "Stability", Field: "fps.stability", ActualValue: 99.0, Passed: true},
			},
		},
		{
			OverallResult: models.ResultFail,
			Rules: []models.RuleOutcome{
				{RuleID: "1", RuleName: "Min FPS", Field: "fps.min", ActualValue: 10.0},
				{RuleID: "2", RuleName: "Stability", Field: "fps.stability", ActualValue: nil},
			},
		},
		{
			OverallResult: models.ResultFail,
			Rules: []models.RuleOutcome{
				{RuleID: "1", RuleName: "Min FPS", Field: "fps.min", ActualValue: 35.0, Passed: true},
				{RuleID: "2", RuleName: "Stability", Field: "fps.stability", ActualValue: nil},
			},
		},
	}

	summary := Summarize(results)

	if summary.TotalSessions != 3 || summary.Passed != 1 || summary.Failed != 2 {
		t.Errorf("unexpected totals: %+v", summary)
	}

	if summary.PassRate != 33.33 {
		t.Errorf("expected pass rate 33.33, got %v", summary.PassRate)
	}

	if len(summary.ByRule) != 2 {
		t.Fatalf("expected 2 rule stats, got %d", len(summary.ByRule))
	}

	fps := summary.ByRule[0]
	if fps.RuleID != "1" || fps.Passed != 2 || fps.Failed != 1 || fps.Missing != 0 || fps.PassRate != 66.67 {
		t.Errorf("unexpected fps stats: %+v", fps)
	}

	stability := summary.ByRule[1]
	if stability.Passed != 1 || stability.Failed != 2 || stability.Missing != 2 {
		t.Errorf("unexpected stability stats: %+v", stability)
	}
}

func TestSummarize_GroupsRulesWithoutID(t *testing.T) {
	results := []models.ValidationResult{
		{OverallResult: models.ResultPass, Rules: []models.RuleOutcome{{RuleName: "a", Field: "x", Passed: true}, {RuleName: "a", Field: "y", Passed: true}}},
		{OverallResult: models.ResultPass, Rules: []models.RuleOutcome{{RuleName: "a", Field: "x", Passed: true}, {RuleName: "a", Field: "y", Passed: true}}},
	}

	summary := Summarize(results)
	if len(summary.ByRule) != 2 || summary.ByRule[0].Passed != 2 || summary.ByRule[1].Field != "y" {
		t.Errorf("unexpected grouping: %+v", summary.ByRule)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalSessions != 0 || summary.PassRate != 0 || summary.ByRule != nil {
		t.Errorf("unexpected empty summary: %+v", summary)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, total int
		want        float64
	}{
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{5, 5, 100},
		{1, 8, 12.5},
	}

	for _, tt := range tests {
		if got := Percent(tt.part, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.part, tt.total, got, tt.want)
		}
	}
}
