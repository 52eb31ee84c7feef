package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kx0101/sessioncheck/internal/models"
)

// HistoryStore keeps finished validation runs. GetRun returns nil, nil for
// an unknown id.
type HistoryStore interface {
	SaveRun(ctx context.Context, run *models.ValidationRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.ValidationRun, error)
	ListRuns(ctx context.Context, filter ListFilter) ([]models.RunListItem, int, error)
}

type ListFilter struct {
	After  *time.Time
	Before *time.Time
	// FailedOnly keeps runs where at least one session failed.
	FailedOnly bool
	Limit      int
	Offset     int
}

func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (f ListFilter) matches(run *models.ValidationRun) bool {
	if f.After != nil && run.CreatedAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && run.CreatedAt.After(*f.Before) {
		return false
	}
	if f.FailedOnly && run.Failed == 0 {
		return false
	}
	return true
}
