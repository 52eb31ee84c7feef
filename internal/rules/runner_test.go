package rules

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/kx0101/sessioncheck/internal/models"
)

func TestRun(t *testing.T) {
	sessions := []models.Session{
		{"id": "s1", "appName": "Racer", "deviceModel": "Pixel 8", "fpsMin": 45.0, "fpsStability": 100.0},
		{"id": "s2", "packageName": "com.example.puzzle", "fpsMin": 12.0, "fpsStability": 80.0},
		{"sessionId": "s3", "fpsStability": 99.0},
	}

	rules := []models.ValidationRule{
		rule("fps.min", models.KindNumber, models.CondGreaterOrEqual, 30),
		rule("fps.stability", models.KindNumber, models.CondBetween, []any{0, 100}),
		{ID: "off", Name: "off", Field: "fps.max", Operator: models.KindNumber, Condition: models.CondExists, Enabled: false},
	}

	results := Run(sessions, rules)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	want := []struct {
		id      string
		app     string
		device  string
		overall string
		passed  []bool
	}{
		{"s1", "Racer", "Pixel 8", models.ResultPass, []bool{true, true}},
		{"s2", "com.example.puzzle", "", models.ResultFail, []bool{false, true}},
		{"s3", "", "", models.ResultFail, []bool{false, true}},
	}

	for i, w := range want {
		r := results[i]
		if r.SessionID != w.id || r.AppName != w.app || r.DeviceModel != w.device {
			t.Errorf("result %d identity = %s/%s/%s, want %s/%s/%s", i, r.SessionID, r.AppName, r.DeviceModel, w.id, w.app, w.device)
		}

		if r.OverallResult != w.overall {
			t.Errorf("result %d overall = %s, want %s", i, r.OverallResult, w.overall)
		}

		if len(r.Rules) != len(w.passed) {
			t.Fatalf("result %d has %d outcomes, want %d", i, len(r.Rules), len(w.passed))
		}

		for j, passed := range w.passed {
			if r.Rules[j].Field != rules[j].Field {
				t.Errorf("result %d outcome %d is %s, rule order not kept", i, j, r.Rules[j].Field)
			}

			if r.Rules[j].Passed != passed {
				t.Errorf("result %d outcome %d passed = %v, want %v", i, j, r.Rules[j].Passed, passed)
			}
		}
	}

	if AllPassed(results) {
		t.Error("AllPassed should be false")
	}
}

func TestRun_NoEnabledRulesPassVacuously(t *testing.T) {
	sessions := []models.Session{{"id": "s1"}, {"id": "s2"}}
	disabled := []models.ValidationRule{
		{ID: "1", Name: "off", Field: "fps.min", Operator: models.KindNumber, Condition: models.CondExists},
	}

	for _, rules := range [][]models.ValidationRule{nil, disabled} {
		results := Run(sessions, rules)
		for _, r := range results {
			if !r.Passed() || len(r.Rules) != 0 {
				t.Errorf("expected vacuous pass, got %+v", r)
			}
		}
	}

	if len(Run(nil, disabled)) != 0 {
		t.Error("no sessions should produce no results")
	}

	if !AllPassed(nil) {
		t.Error("AllPassed(nil) should be true")
	}
}

func TestRunParallel_MatchesRun(t *testing.T) {
	sessions := make([]models.Session, 50)
	for i := range sessions {
		sessions[i] = models.Session{
			"id":          fmt.Sprintf("s%02d", i),
			"fpsMin":      float64(i),
			"deviceModel": fmt.Sprintf("Device %d", i%3),
		}
	}

	rules := []models.ValidationRule{
		rule("fps.min", models.KindNumber, models.CondGreaterOrEqual, 25),
		rule("device.model", models.KindString, models.CondEndsWith, "1"),
		rule("device.model", models.KindString, models.CondMatches, `(`),
	}

	want := Run(sessions, rules)

	for _, workers := range []int{0, 1, 4, 64} {
		got := RunParallel(sessions, rules, workers)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("workers=%d: results differ from sequential run", workers)
		}
	}
}

func TestEnabledRules(t *testing.T) {
	rules := []models.ValidationRule{
		{ID: "a", Enabled: true},
		{ID: "b"},
		{ID: "c", Enabled: true},
	}

	enabled := EnabledRules(rules)
	if len(enabled) != 2 || enabled[0].ID != "a" || enabled[1].ID != "c" {
		t.Fatalf("unexpected enabled rules: %+v", enabled)
	}

	rules[0].Enabled = false
	rules[0].ID = "changed"
	if enabled[0].ID != "a" {
		t.Error("snapshot should not follow later edits")
	}
}
