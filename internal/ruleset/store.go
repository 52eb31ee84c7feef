package ruleset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/rules"
)

// Store persists a rule list. Loading a store that was never saved returns
// fs.ErrNotExist.
type Store interface {
	Load(ctx context.Context) ([]models.ValidationRule, error)
	Save(ctx context.Context, rules []models.ValidationRule) error
}

// Open picks the store for path by extension: .db and .sqlite open a SQLite
// database, anything else is a YAML rules document.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(path)
	default:
		return NewFileStore(path), nil
	}
}

// LoadOrDefaults loads the stored rules, seeding with Defaults when nothing
// has been stored yet.
func LoadOrDefaults(ctx context.Context, store Store) (*Set, error) {
	loaded, err := store.Load(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return New(Defaults()), nil
	}

	if err != nil {
		return nil, err
	}

	set := New(nil)
	if err := set.Replace(loaded); err != nil {
		return nil, err
	}

	return set, nil
}

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) ([]models.ValidationRule, error) {
	data, err := rules.ReadFileSafe(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	config, err := rules.ParseRules(data)
	if err != nil {
		return nil, err
	}

	return config.Rules, nil
}

// Save writes the document to a temp file next to the target and renames it
// into place.
func (f *FileStore) Save(_ context.Context, list []models.ValidationRule) error {
	data, err := rules.MarshalRules(list)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write rules file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close rules file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace rules file: %w", err)
	}

	return nil
}
