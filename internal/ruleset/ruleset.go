package ruleset

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/rules"
)

var ErrNotFound = errors.New("rule not found")

// Set is the editable rule collection. Runs never see it directly: they work
// from Snapshot, so edits made during a run apply to the next one.
type Set struct {
	mu    sync.RWMutex
	rules []models.ValidationRule
}

func New(initial []models.ValidationRule) *Set {
	s := &Set{}
	s.rules = cloneRules(initial)

	return s
}

// Defaults is the seed rule list offered to new users.
func Defaults() []models.ValidationRule {
	return []models.ValidationRule{
		{ID: "1", Name: "Min FPS is non-negative", Field: "fps.min", Operator: models.KindNumber, Condition: models.CondGreaterOrEqual, Value: 0, Enabled: true},
		{ID: "2", Name: "FPS stability is a percentage", Field: "fps.stability", Operator: models.KindNumber, Condition: models.CondBetween, Value: []any{0, 100}, Enabled: true},
		{ID: "3", Name: "Average CPU is a percentage", Field: "cpu.avg", Operator: models.KindNumber, Condition: models.CondBetween, Value: []any{0, 100}, Enabled: true},
		{ID: "4", Name: "Starting battery is a percentage", Field: "battery.first", Operator: models.KindNumber, Condition: models.CondBetween, Value: []any{0, 100}, Enabled: true},
		{ID: "5", Name: "Session has a duration", Field: "session.duration", Operator: models.KindNumber, Condition: models.CondGreater, Value: 0, Enabled: true},
	}
}

func (s *Set) List() []models.ValidationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneRules(s.rules)
}

// Snapshot returns the enabled rules in order, detached from the set.
func (s *Set) Snapshot() []models.ValidationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return rules.EnabledRules(s.rules)
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rules)
}

func (s *Set) Get(id string) (models.ValidationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.ValidationRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return s.rules[idx], nil
}

// Add validates the rule and appends it. A blank id gets a fresh uuid.
func (s *Set) Add(rule models.ValidationRule) (models.ValidationRule, error) {
	prepared := []models.ValidationRule{rule}
	rules.Normalize(prepared)
	rule = prepared[0]

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	if err := rules.ValidateRule(rule); err != nil {
		return models.ValidationRule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rule.ID) >= 0 {
		return models.ValidationRule{}, fmt.Errorf("%w: duplicate id %q", models.ErrInvalidRule, rule.ID)
	}

	s.rules = append(s.rules, rule)

	return rule, nil
}

// Update replaces the rule with the given id, keeping its position.
func (s *Set) Update(id string, rule models.ValidationRule) (models.ValidationRule, error) {
	prepared := []models.ValidationRule{rule}
	rules.Normalize(prepared)
	rule = prepared[0]
	rule.ID = id

	if err := rules.ValidateRule(rule); err != nil {
		return models.ValidationRule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.ValidationRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.rules[idx] = rule

	return rule, nil
}

func (s *Set) Toggle(id string) (models.ValidationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.ValidationRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.rules[idx].Enabled = !s.rules[idx].Enabled

	return s.rules[idx], nil
}

func (s *Set) SetEnabled(id string, enabled bool) (models.ValidationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.ValidationRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.rules[idx].Enabled = enabled

	return s.rules[idx], nil
}

func (s *Set) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.rules = append(s.rules[:idx], s.rules[idx+1:]...)

	return nil
}

// Replace swaps the whole collection after validating it.
func (s *Set) Replace(next []models.ValidationRule) error {
	next = cloneRules(next)
	rules.Normalize(next)

	for i := range next {
		if next[i].ID == "" {
			next[i].ID = uuid.NewString()
		}
	}

	if err := rules.ValidateRules(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()

	return nil
}

// Commit applies change to a working copy and installs the result only once
// save accepts it. Commits hold the write lock throughout, so the list last
// saved is always the list in memory.
func (s *Set) Commit(change func(*Set) error, save func([]models.ValidationRule) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &Set{rules: cloneRules(s.rules)}
	if err := change(work); err != nil {
		return err
	}

	if save != nil {
		if err := save(cloneRules(work.rules)); err != nil {
			return err
		}
	}

	s.rules = work.rules

	return nil
}

func (s *Set) indexOf(id string) int {
	id = strings.TrimSpace(id)
	for i := range s.rules {
		if s.rules[i].ID == id {
			return i
		}
	}

	return -1
}

func cloneRules(in []models.ValidationRule) []models.ValidationRule {
	out := make([]models.ValidationRule, len(in))
	copy(out, in)

	return out
}
