package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kx0101/sessioncheck/internal/models"
)

var (
	ErrNoSessions      = errors.New("no sessions")
	ErrSessionNotFound = errors.New("session not found")
)

// Provider supplies sessions to validate, from a file or a remote API.
type Provider interface {
	ListSessions(ctx context.Context, filter Filter) ([]models.Session, error)
	GetSession(ctx context.Context, id string) (models.Session, error)
}

type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) ListSessions(_ context.Context, filter Filter) ([]models.Session, error) {
	sessions, err := ReadSessions(p.path)
	if err != nil {
		return nil, err
	}

	return Apply(sessions, filter), nil
}

func (p *FileProvider) GetSession(_ context.Context, id string) (models.Session, error) {
	sessions, err := ReadSessions(p.path)
	if err != nil {
		return nil, err
	}

	for _, s := range sessions {
		if s.ID() == id {
			return s, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func ReadSessions(path string) ([]models.Session, error) {
	path = filepath.Clean(path)
	if escapes(path) {
		return nil, fmt.Errorf("invalid input path: %s", path)
	}

	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		err = file.Close()
		if err != nil {
			slog.Warn("failed to close sessions file", "path", path, "error", err)
		}
	}()

	return ParseSessions(file)
}

// ParseSessions accepts a JSON array of sessions, an object with a
// "sessions" array, a single session object, or one session per line.
func ParseSessions(r io.Reader) ([]models.Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var sessions []models.Session
		if err := json.Unmarshal(trimmed, &sessions); err != nil {
			return nil, fmt.Errorf("failed to parse sessions array: %w", err)
		}

		return dropNil(sessions), nil
	case '{':
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			if raw, ok := doc["sessions"]; ok {
				var sessions []models.Session
				if err := json.Unmarshal(raw, &sessions); err != nil {
					return nil, fmt.Errorf("failed to parse sessions envelope: %w", err)
				}

				return dropNil(sessions), nil
			}

			var single models.Session
			if err := json.Unmarshal(trimmed, &single); err != nil {
				return nil, fmt.Errorf("failed to parse session: %w", err)
			}

			return []models.Session{single}, nil
		}
	}

	return parseLines(bytes.NewReader(trimmed))
}

func parseLines(r io.Reader) ([]models.Session, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var sessions []models.Session
	lineNum := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		lineNum++

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var session models.Session
		if err := json.Unmarshal(line, &session); err != nil || session == nil {
			slog.Warn("skipping invalid session line", "line", lineNum, "error", err)
			continue
		}

		sessions = append(sessions, session)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func dropNil(sessions []models.Session) []models.Session {
	out := sessions[:0]
	for _, s := range sessions {
		if s != nil {
			out = append(out, s)
		}
	}

	return out
}

// escapes reports whether a cleaned path still climbs out through "..".
func escapes(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return true
		}
	}

	return false
}
