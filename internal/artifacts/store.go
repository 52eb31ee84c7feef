package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("artifact storage is not configured")

// Store uploads exported reports.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type NoopStore struct{}

func (NoopStore) Put(context.Context, string, string, []byte) error {
	return ErrNotConfigured
}

// ExportKey builds the object key for a run export, e.g.
// "exports/<run id>/results.csv".
func ExportKey(prefix string, runID uuid.UUID, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "json"
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "exports"
	}

	return path.Join(prefix, runID.String(), fmt.Sprintf("results.%s", ext))
}

func ContentType(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "csv":
		return "text/csv"
	case "html":
		return "text/html; charset=utf-8"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
