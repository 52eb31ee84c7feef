package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kx0101/sessioncheck/internal/artifacts"
	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/config"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/stats"
	"github.com/kx0101/sessioncheck/internal/store"
)

const passingSessions = `[
  {"id": "s1", "appName": "Racer", "deviceModel": "Pixel 8", "fpsMin": 45, "fpsStability": 100, "cpuUsageAvg": 38.5, "firstBat": 90, "timePlayed": 600},
  {"id": "s2", "appName": "Puzzle", "deviceModel": "Galaxy S23", "fpsMin": 58, "fpsStability": 97, "cpuUsageAvg": 12, "firstBat": 100, "timePlayed": 120}
]`

const failingSessions = `[
  {"id": "s1", "appName": "Racer", "deviceModel": "Pixel 8", "fpsMin": 45, "fpsStability": 100, "cpuUsageAvg": 38.5, "firstBat": 90, "timePlayed": 600},
  {"id": "s3", "appName": "Racer", "deviceModel": "Pixel 6", "fpsMin": -1, "cpuUsageAvg": 140, "firstBat": 50, "timePlayed": 0}
]`

type recordingHistory struct {
	store.HistoryStore
	saved []*models.ValidationRun
}

func (r *recordingHistory) SaveRun(_ context.Context, run *models.ValidationRun) error {
	r.saved = append(r.saved, run)
	return nil
}

type recordingArtifacts struct {
	key         string
	contentType string
	body        []byte
}

func (r *recordingArtifacts) Put(_ context.Context, key, contentType string, body []byte) error {
	r.key = key
	r.contentType = contentType
	r.body = body
	return nil
}

func isolateEnv(t *testing.T) string {
	t.Helper()

	for _, key := range []string{
		"SESSIONCHECK_API_URL", "SESSIONCHECK_API_TOKEN", "SESSIONCHECK_API_KEY",
		"REDIS_ADDR", "DATABASE_URL", "S3_BUCKET", "S3_ENDPOINT", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	return t.TempDir()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

func run(args ...string) (cli.ExitCode, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func TestExecute_ValidatePassing(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)

	code, stdout, stderr := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions, "--format", "json")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v (stderr: %s)", code, stderr)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}

	if report.Results[0].SessionID != "s1" || report.Results[1].SessionID != "s2" {
		t.Errorf("results out of input order: %s, %s", report.Results[0].SessionID, report.Results[1].SessionID)
	}

	if report.Summary.Passed != 2 || report.Summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
}

func TestExecute_ValidateFailing(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", failingSessions)

	code, stdout, _ := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions)
	if code != cli.ExitRules {
		t.Fatalf("expected ExitRules, got %v", code)
	}

	if !strings.Contains(stdout, "FAILED - 1 of 2 session(s) failed validation") {
		t.Errorf("missing failure headline:\n%s", stdout)
	}

	if !strings.Contains(stdout, "Session: s3") || strings.Contains(stdout, "Session: s1") {
		t.Errorf("expected only s3 to be listed:\n%s", stdout)
	}

	if !strings.Contains(stdout, "<missing>") {
		t.Errorf("expected missing fpsStability to be reported:\n%s", stdout)
	}
}

func TestExecute_ValidateFilters(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", failingSessions)

	code, stdout, _ := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions, "--device", "pixel 8", "-f", "csv")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK for the filtered passing session, got %v", code)
	}

	if strings.Contains(stdout, "s3") {
		t.Errorf("filtered session s3 in output:\n%s", stdout)
	}
}

func TestExecute_ValidateOutputFile(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)
	out := filepath.Join(dir, "results.csv")

	code, stdout, _ := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions, "-f", "csv", "-o", out)
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v", code)
	}

	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	if lines := strings.Count(string(data), "\n"); lines != 11 {
		t.Errorf("expected header plus 10 rows, got %d lines", lines)
	}
}

func TestExecute_ValidateHTMLReport(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)

	called := false
	orig := generateHTMLFn
	t.Cleanup(func() { generateHTMLFn = orig })
	generateHTMLFn = func(results []models.ValidationResult, _ stats.Summary, source, path string) error {
		called = true
		if len(results) != 2 || source != sessions || path != "report.html" {
			t.Errorf("unexpected report args: %d %s %s", len(results), source, path)
		}
		return nil
	}

	code, _, _ := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions, "-f", "html", "-o", "report.html")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v", code)
	}

	if !called {
		t.Errorf("generateHTMLFn was not called")
	}
}

func TestExecute_InvalidArguments(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)
	rulesPath := filepath.Join(dir, "rules.yaml")

	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"validate", "--rules", rulesPath, "--sessions", sessions, "--format", "xml"}},
		{"unknown flag", []string{"validate", "--rules", rulesPath, "--bogus"}},
		{"no session source", []string{"validate", "--rules", rulesPath}},
		{"empty sessions", []string{"validate", "--rules", rulesPath, "--sessions", writeFile(t, dir, "empty.json", "[]")}},
		{"unknown kind", []string{"conditions", "--kind", "color"}},
		{"toggle missing rule", []string{"rules", "toggle", "nope", "--rules", rulesPath}},
		{"rule without condition", []string{"rules", "add", "--field", "fps.avg", "--rules", rulesPath}},
		{"rule with wrong value", []string{"rules", "add", "--field", "fps.avg", "--condition", ">=", "--value", "fast", "--rules", rulesPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(tt.args...)
			if code != cli.ExitInvalid {
				t.Errorf("expected ExitInvalid, got %v (stderr: %s)", code, stderr)
			}

			if !strings.Contains(stderr, "Error:") {
				t.Errorf("expected an error message, got %q", stderr)
			}
		})
	}
}

func TestExecute_NoEnabledRules(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)
	rulesPath := writeFile(t, dir, "rules.yaml", `rules:
  - id: "1"
    name: Min FPS
    field: fps.min
    operator: number
    condition: ">="
    value: 30
    enabled: false
`)

	code, _, stderr := run("validate", "--rules", rulesPath, "--sessions", sessions)
	if code != cli.ExitInvalid {
		t.Fatalf("expected ExitInvalid, got %v", code)
	}

	if !strings.Contains(stderr, "no enabled rules") {
		t.Errorf("unexpected error output: %s", stderr)
	}
}

func TestExecute_InvalidRulesFile(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)
	rulesPath := writeFile(t, dir, "rules.yaml", `rules:
  - name: Bad
    field: fps.min
    operator: number
    condition: contains
    value: 3
    enabled: true
`)

	code, _, _ := run("validate", "--rules", rulesPath, "--sessions", sessions)
	if code != cli.ExitInvalid {
		t.Errorf("expected ExitInvalid, got %v", code)
	}
}

func TestExecute_RulesLifecycle(t *testing.T) {
	dir := isolateEnv(t)
	rulesPath := filepath.Join(dir, "rules.yaml")

	code, stdout, _ := run("rules", "seed", "--rules", rulesPath)
	if code != cli.ExitOK || !strings.Contains(stdout, "Wrote 5 default rules") {
		t.Fatalf("seed: code %v, output %q", code, stdout)
	}

	if code, _, _ := run("rules", "seed", "--rules", rulesPath); code != cli.ExitInvalid {
		t.Errorf("second seed without --force: expected ExitInvalid, got %v", code)
	}

	code, stdout, _ = run("rules", "add", "--rules", rulesPath, "--id", "fps-floor", "--name", "FPS floor",
		"--field", "fps.avg", "--condition", ">=", "--value", "30")
	if code != cli.ExitOK || !strings.Contains(stdout, "Added rule fps-floor") {
		t.Fatalf("add: code %v, output %q", code, stdout)
	}

	code, stdout, _ = run("rules", "add", "--rules", rulesPath, "--field", "cpu.max", "--condition", "between", "--value", "[0, 80]", "--disabled")
	if code != cli.ExitOK {
		t.Fatalf("add between: code %v, output %q", code, stdout)
	}

	code, stdout, _ = run("rules", "toggle", "1", "--rules", rulesPath)
	if code != cli.ExitOK || !strings.Contains(stdout, "Rule 1 disabled") {
		t.Fatalf("toggle: code %v, output %q", code, stdout)
	}

	code, stdout, _ = run("rules", "delete", "2", "--rules", rulesPath)
	if code != cli.ExitOK || !strings.Contains(stdout, "Deleted rule 2") {
		t.Fatalf("delete: code %v, output %q", code, stdout)
	}

	code, stdout, _ = run("rules", "list", "--json", "--rules", rulesPath)
	if code != cli.ExitOK {
		t.Fatalf("list: code %v", code)
	}

	var listed struct {
		Rules []models.ValidationRule `json:"rules"`
	}
	if err := json.Unmarshal([]byte(stdout), &listed); err != nil {
		t.Fatalf("invalid list JSON: %v\n%s", err, stdout)
	}

	ids := make([]string, 0, len(listed.Rules))
	for _, rule := range listed.Rules {
		ids = append(ids, rule.ID)
	}

	if len(ids) != 6 || ids[0] != "1" || ids[1] != "3" || ids[4] != "fps-floor" {
		t.Fatalf("unexpected rule order: %v", ids)
	}

	if listed.Rules[0].Enabled {
		t.Errorf("rule 1 should be disabled")
	}

	added := listed.Rules[5]
	if added.Operator != models.KindNumber || added.Enabled || added.Name != "cpu.max" {
		t.Errorf("unexpected defaults for added rule: %+v", added)
	}

	code, stdout, _ = run("rules", "list", "--rules", rulesPath)
	if code != cli.ExitOK || !strings.Contains(stdout, "FPS floor") || !strings.Contains(stdout, "[0, 80]") {
		t.Errorf("list table: code %v\n%s", code, stdout)
	}
}

func TestExecute_RulesSQLite(t *testing.T) {
	dir := isolateEnv(t)
	dbPath := filepath.Join(dir, "rules.db")

	if code, _, stderr := run("rules", "toggle", "5", "--rules", dbPath); code != cli.ExitOK {
		t.Fatalf("toggle: code %v (%s)", code, stderr)
	}

	sessions := writeFile(t, dir, "sessions.json", `[{"id": "s1", "fpsMin": 30, "fpsStability": 90, "cpuUsageAvg": 10, "firstBat": 80, "timePlayed": 0}]`)

	code, _, _ := run("validate", "--rules", dbPath, "--sessions", sessions)
	if code != cli.ExitOK {
		t.Errorf("expected the disabled duration rule to be skipped, got %v", code)
	}
}

func TestExecute_Conditions(t *testing.T) {
	isolateEnv(t)

	code, stdout, _ := run("conditions", "--kind", "boolean")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v", code)
	}

	for _, want := range []string{"isTrue", "isFalse", "Is true"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("missing %q in:\n%s", want, stdout)
		}
	}

	if strings.Contains(stdout, "between") {
		t.Errorf("number conditions listed for boolean:\n%s", stdout)
	}

	_, stdout, _ = run("conditions", "--field", "session.date")
	if !strings.Contains(stdout, "session.date is a date field") || !strings.Contains(stdout, "before") {
		t.Errorf("unexpected field output:\n%s", stdout)
	}
}

func TestExecute_Sessions(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", failingSessions)

	code, stdout, _ := run("sessions", "--sessions", sessions, "--limit", "1")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v", code)
	}

	if !strings.Contains(stdout, "s1") || !strings.Contains(stdout, "Pixel 8") || strings.Contains(stdout, "s3") {
		t.Errorf("unexpected sessions output:\n%s", stdout)
	}
}

func TestExecute_SaveAndUpload(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://example/sessioncheck")
	sessions := writeFile(t, dir, "sessions.json", failingSessions)

	history := &recordingHistory{}
	uploads := &recordingArtifacts{}

	origHistory, origArtifacts := openHistoryFn, openArtifactsFn
	t.Cleanup(func() {
		openHistoryFn = origHistory
		openArtifactsFn = origArtifacts
	})

	openHistoryFn = func(_ context.Context, url string) (store.HistoryStore, func(), error) {
		if url != "postgres://example/sessioncheck" {
			t.Errorf("unexpected database url %q", url)
		}
		return history, func() {}, nil
	}
	openArtifactsFn = func(context.Context, config.Config) (artifacts.Store, error) {
		return uploads, nil
	}

	code, _, stderr := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions,
		"-f", "json", "--save", "--upload", "--label", "build=1042", "--label", "branch=main")
	if code != cli.ExitRules {
		t.Fatalf("expected ExitRules, got %v (%s)", code, stderr)
	}

	if len(history.saved) != 1 {
		t.Fatalf("expected one saved run, got %d", len(history.saved))
	}

	saved := history.saved[0]
	if saved.Passed != 1 || saved.Failed != 1 || saved.Labels["build"] != "1042" || saved.Labels["branch"] != "main" {
		t.Errorf("unexpected saved run: %+v", saved)
	}

	wantKey := "exports/" + saved.ID.String() + "/results.csv"
	if uploads.key != wantKey {
		t.Errorf("expected upload key %s, got %s", wantKey, uploads.key)
	}

	if uploads.contentType != "text/csv" || !bytes.Contains(uploads.body, []byte("s3")) {
		t.Errorf("unexpected upload: %s %q", uploads.contentType, uploads.body)
	}

	if !strings.Contains(stderr, "Saved run "+saved.ID.String()) || !strings.Contains(stderr, "Uploaded results to "+wantKey) {
		t.Errorf("missing confirmations in stderr: %s", stderr)
	}
}

func TestExecute_UploadFailureIsAWarning(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)

	code, _, stderr := run("validate", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions, "-f", "json", "--upload", "--save")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v", code)
	}

	if !strings.Contains(stderr, "Warning: upload failed") || !strings.Contains(stderr, "Warning: saving run failed: DATABASE_URL not set") {
		t.Errorf("expected warnings, got %s", stderr)
	}
}

func TestExecute_Serve(t *testing.T) {
	dir := isolateEnv(t)
	sessions := writeFile(t, dir, "sessions.json", passingSessions)

	var handler http.Handler
	orig := listenAndServeFn
	t.Cleanup(func() { listenAndServeFn = orig })
	listenAndServeFn = func(srv *http.Server) error {
		if srv.Addr != "127.0.0.1:0" {
			t.Errorf("unexpected listen address %q", srv.Addr)
		}
		handler = srv.Handler
		return http.ErrServerClosed
	}

	code, _, stderr := run("serve", "--rules", filepath.Join(dir, "rules.yaml"), "--sessions", sessions, "--listen", "127.0.0.1:0")
	if code != cli.ExitOK {
		t.Fatalf("expected ExitOK, got %v (%s)", code, stderr)
	}

	if handler == nil {
		t.Fatal("server was not started")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "fps.stability") {
		t.Errorf("rules endpoint: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"sessionIds": ["s2"]}`)
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/validate", body))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sessionId":"s2"`) {
		t.Errorf("validate endpoint: %d %s", rec.Code, rec.Body.String())
	}
}

func TestExecute_ServeListenError(t *testing.T) {
	dir := isolateEnv(t)

	orig := listenAndServeFn
	t.Cleanup(func() { listenAndServeFn = orig })
	listenAndServeFn = func(*http.Server) error {
		return errors.New("address already in use")
	}

	code, _, stderr := run("serve", "--rules", filepath.Join(dir, "rules.yaml"))
	if code != cli.ExitRuntime || !strings.Contains(stderr, "address already in use") {
		t.Errorf("expected ExitRuntime, got %v (%s)", code, stderr)
	}
}
