package input

import (
	"strings"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/rules"
)

type Filter struct {
	IDs    []string
	App    string
	Device string
	Limit  int
}

func (f Filter) IsZero() bool {
	return len(f.IDs) == 0 && f.App == "" && f.Device == "" && f.Limit <= 0
}

// Apply selects sessions matching the filter. Matching keeps input order;
// App and Device are case-insensitive substring matches.
func Apply(sessions []models.Session, filter Filter) []models.Session {
	if filter.IsZero() {
		return sessions
	}

	var ids map[string]bool
	if len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[strings.TrimSpace(id)] = true
		}
	}

	filtered := make([]models.Session, 0)

	for _, session := range sessions {
		if filter.Limit > 0 && len(filtered) >= filter.Limit {
			break
		}

		if ids != nil && !ids[session.ID()] {
			continue
		}

		if filter.App != "" && !matchesAny(session, filter.App, "app.name", "app.packageName") {
			continue
		}

		if filter.Device != "" && !matchesAny(session, filter.Device, "device.model", "device.manufacturer") {
			continue
		}

		filtered = append(filtered, session)
	}

	return filtered
}

func matchesAny(session models.Session, needle string, paths ...string) bool {
	needle = strings.ToLower(needle)
	for _, path := range paths {
		if strings.Contains(strings.ToLower(rules.Resolve(session, path).String()), needle) {
			return true
		}
	}

	return false
}
