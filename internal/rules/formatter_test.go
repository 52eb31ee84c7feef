package rules

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/models"
)

func TestFormatResults(t *testing.T) {
	passing := models.ValidationResult{SessionID: "ok", OverallResult: models.ResultPass}
	failing := models.ValidationResult{
		SessionID:     "bad",
		AppName:       "Racer",
		DeviceModel:   "Pixel 6",
		OverallResult: models.ResultFail,
		Rules: []models.RuleOutcome{
			{RuleName: "Min FPS", Field: "fps.min", ExpectedCondition: ">=", ExpectedValue: 30, ActualValue: 12.5},
			{RuleName: "Stability", Field: "fps.stability", ExpectedCondition: "between", ExpectedValue: []any{0, 100}},
			{RuleName: "Duration", Field: "session.duration", ExpectedCondition: ">", ExpectedValue: 0, ActualValue: 600.0, Passed: true},
		},
	}

	out := FormatResults([]models.ValidationResult{passing})
	if !strings.Contains(out, "PASSED - 1 session(s) satisfied all rules") {
		t.Errorf("unexpected passing output:\n%s", out)
	}

	out = FormatResults([]models.ValidationResult{passing, failing})

	for _, want := range []string{
		"FAILED - 1 of 2 session(s) failed validation",
		"Session: bad",
		"Device:  Pixel 6",
		"Min FPS: fps.min >= 30 (actual: 12.5)",
		"Stability: fps.stability between [0, 100] (actual: <missing>)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "Session: ok") || strings.Contains(out, "Duration") {
		t.Errorf("passing sessions and rules should not be listed:\n%s", out)
	}
}

func TestFormatResultsJSON(t *testing.T) {
	out, err := FormatResultsJSON([]models.ValidationResult{{SessionID: "s1", OverallResult: models.ResultPass}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if decoded[0]["sessionId"] != "s1" || decoded[0]["overallResult"] != "pass" {
		t.Errorf("unexpected JSON: %s", out)
	}
}

func TestGetExitCode(t *testing.T) {
	pass := models.ValidationResult{OverallResult: models.ResultPass}
	fail := models.ValidationResult{OverallResult: models.ResultFail}

	if code := GetExitCode(nil); code != cli.ExitOK {
		t.Errorf("no results: got %v", code)
	}

	if code := GetExitCode([]models.ValidationResult{pass, pass}); code != cli.ExitOK {
		t.Errorf("all passing: got %v", code)
	}

	if code := GetExitCode([]models.ValidationResult{pass, fail}); code != cli.ExitRules {
		t.Errorf("one failing: got %v", code)
	}
}
