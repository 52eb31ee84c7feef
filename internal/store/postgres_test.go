//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kx0101/sessioncheck/internal/models"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()

	dbURL := os.Getenv("SESSIONCHECK_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("SESSIONCHECK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connecting to test db: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	_, err = pool.Exec(ctx, "DELETE FROM validation_runs")
	if err != nil {
		t.Fatalf("cleaning validation_runs table: %v", err)
	}

	return s
}

func TestPostgresStore_SaveAndGetRun(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	results := []models.ValidationResult{
		{
			SessionID:   "s1",
			AppName:     "Racer",
			DeviceModel: "Pixel 8",
			Rules: []models.RuleOutcome{
				{RuleID: "1", RuleName: "fps", Field: "fps.min", ExpectedCondition: models.CondGreaterOrEqual, ExpectedValue: 0.0, ActualValue: 30.0, Passed: true},
			},
			OverallResult: models.ResultPass,
		},
		{SessionID: "s2", OverallResult: models.ResultFail},
	}

	run := models.NewValidationRun(1, results, map[string]string{"build": "42"})
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got == nil {
		t.Fatal("expected run, got nil")
	}

	if got.Passed != 1 || got.Failed != 1 || got.SessionCount != 2 {
		t.Errorf("unexpected counts: %+v", got.ListItem())
	}

	if len(got.Results) != 2 || got.Results[0].Rules[0].ActualValue != 30.0 {
		t.Errorf("unexpected results: %+v", got.Results)
	}

	if got.Labels["build"] != "42" {
		t.Errorf("expected label build=42, got %v", got.Labels)
	}
}

func TestPostgresStore_GetRunNotFound(t *testing.T) {
	s := setupTestDB(t)

	got, err := s.GetRun(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		result := models.ValidationResult{SessionID: "s", OverallResult: models.ResultPass}
		if i == 1 {
			result.OverallResult = models.ResultFail
		}

		run := models.NewValidationRun(2, []models.ValidationResult{result}, nil)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	items, total, err := s.ListRuns(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}

	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 runs, got total=%d len=%d", total, len(items))
	}

	if !items[0].CreatedAt.After(items[1].CreatedAt) {
		t.Error("expected newest first")
	}

	failed, total, err := s.ListRuns(ctx, ListFilter{FailedOnly: true})
	if err != nil {
		t.Fatalf("ListRuns failed only: %v", err)
	}

	if total != 1 || len(failed) != 1 {
		t.Errorf("expected 1 failed run, got total=%d len=%d", total, len(failed))
	}
}
