package ruleset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kx0101/sessioncheck/internal/models"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS validation_rules (
  position INTEGER NOT NULL,
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  field TEXT NOT NULL,
  operator TEXT NOT NULL,
  condition TEXT NOT NULL,
  value TEXT,
  enabled INTEGER NOT NULL,
  description TEXT
);
CREATE TABLE IF NOT EXISTS ruleset_meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create rules tables: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns fs.ErrNotExist until the first Save, so an empty saved list
// stays distinguishable from a fresh database.
func (s *SQLiteStore) Load(ctx context.Context) ([]models.ValidationRule, error) {
	var saved string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ruleset_meta WHERE key = 'saved_at'`).Scan(&saved)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no rules saved: %w", fs.ErrNotExist)
	}

	if err != nil {
		return nil, fmt.Errorf("read rules meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, field, operator, condition, value, enabled, description
FROM validation_rules
ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var list []models.ValidationRule
	for rows.Next() {
		var (
			rule        models.ValidationRule
			value       sql.NullString
			description sql.NullString
			enabled     int
		)

		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Field, &rule.Operator, &rule.Condition, &value, &enabled, &description); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}

		if value.Valid && value.String != "" {
			if err := json.Unmarshal([]byte(value.String), &rule.Value); err != nil {
				return nil, fmt.Errorf("decode value of rule %s: %w", rule.ID, err)
			}
		}

		rule.Enabled = enabled != 0
		rule.Description = description.String
		list = append(list, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	return list, nil
}

func (s *SQLiteStore) Save(ctx context.Context, list []models.ValidationRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM validation_rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	const stmt = `
INSERT INTO validation_rules (position, id, name, field, operator, condition, value, enabled, description)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, rule := range list {
		value, err := json.Marshal(rule.Value)
		if err != nil {
			return fmt.Errorf("encode value of rule %s: %w", rule.ID, err)
		}

		enabled := 0
		if rule.Enabled {
			enabled = 1
		}

		if _, err := tx.ExecContext(ctx, stmt,
			i,
			rule.ID,
			rule.Name,
			rule.Field,
			string(rule.Operator),
			string(rule.Condition),
			string(value),
			enabled,
			rule.Description,
		); err != nil {
			return fmt.Errorf("insert rule %s: %w", rule.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO ruleset_meta (key, value) VALUES ('saved_at', datetime('now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value`); err != nil {
		return fmt.Errorf("write rules meta: %w", err)
	}

	return tx.Commit()
}
