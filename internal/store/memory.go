package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kx0101/sessioncheck/internal/models"
)

// MemoryStore is the history used when no database is configured. It keeps
// at most capacity runs, dropping the oldest.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	runs     []*models.ValidationRun
}

var _ HistoryStore = (*MemoryStore)(nil)

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 100
	}

	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) SaveRun(_ context.Context, run *models.ValidationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	s.runs = append(s.runs, run)
	if len(s.runs) > s.capacity {
		s.runs = s.runs[len(s.runs)-s.capacity:]
	}

	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*models.ValidationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run, nil
		}
	}

	return nil, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, filter ListFilter) ([]models.RunListItem, int, error) {
	filter.Normalize()

	s.mu.RLock()
	matched := make([]*models.ValidationRun, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.matches(run) {
			matched = append(matched, run)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []models.RunListItem{}, total, nil
	}

	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}

	items := make([]models.RunListItem, 0, end-filter.Offset)
	for _, run := range matched[filter.Offset:end] {
		items = append(items, run.ListItem())
	}

	return items, total, nil
}
