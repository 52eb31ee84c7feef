package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kx0101/sessioncheck/internal/models"
)

const migrationUp = `
CREATE TABLE IF NOT EXISTS validation_runs (
    id              UUID PRIMARY KEY,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    rule_count      INT         NOT NULL,
    session_count   INT         NOT NULL,
    passed          INT         NOT NULL,
    failed          INT         NOT NULL,
    results         JSONB       NOT NULL,
    labels          JSONB       DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_validation_runs_created_at ON validation_runs (created_at DESC);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ HistoryStore = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a pool, checks it and applies the schema.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationUp)
	if err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *models.ValidationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	labels := run.Labels
	if labels == nil {
		labels = map[string]string{}
	}

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshaling labels: %w", err)
	}

	query := `
		INSERT INTO validation_runs (id, created_at, rule_count, session_count, passed, failed, results, labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err = s.pool.QueryRow(ctx, query,
		run.ID,
		run.CreatedAt,
		run.RuleCount,
		run.SessionCount,
		run.Passed,
		run.Failed,
		resultsJSON,
		labelsJSON,
	).Scan(&run.CreatedAt)

	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.ValidationRun, error) {
	query := `
		SELECT id, created_at, rule_count, session_count, passed, failed, results, labels
		FROM validation_runs
		WHERE id = $1`

	var run models.ValidationRun
	var resultsJSON, labelsJSON []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.CreatedAt,
		&run.RuleCount,
		&run.SessionCount,
		&run.Passed,
		&run.Failed,
		&resultsJSON,
		&labelsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results: %w", err)
	}
	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &run.Labels); err != nil {
			return nil, fmt.Errorf("unmarshaling labels: %w", err)
		}
	}

	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter ListFilter) ([]models.RunListItem, int, error) {
	filter.Normalize()

	where := "WHERE 1=1"
	args := []any{}
	argIdx := 1

	if filter.After != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.After)
		argIdx++
	}
	if filter.Before != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.Before)
		argIdx++
	}
	if filter.FailedOnly {
		where += " AND failed > 0"
	}

	countQuery := "SELECT COUNT(*) FROM validation_runs " + where
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, created_at, rule_count, session_count, passed, failed, labels
		FROM validation_runs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	items := []models.RunListItem{}
	for rows.Next() {
		var item models.RunListItem
		var labelsJSON []byte
		err := rows.Scan(
			&item.ID,
			&item.CreatedAt,
			&item.RuleCount,
			&item.SessionCount,
			&item.Passed,
			&item.Failed,
			&labelsJSON,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning run: %w", err)
		}

		if len(labelsJSON) > 0 {
			if err := json.Unmarshal(labelsJSON, &item.Labels); err != nil {
				return nil, 0, fmt.Errorf("unmarshaling labels: %w", err)
			}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating runs: %w", err)
	}

	return items, total, nil
}
