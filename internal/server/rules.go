package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/rules"
	"github.com/kx0101/sessioncheck/internal/ruleset"
)

var errPersistRules = errors.New("persist rules")

func (s *Server) listConditions(w http.ResponseWriter, r *http.Request) {
	kind := models.Kind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		all := make(map[models.Kind][]rules.ConditionOption)
		for _, k := range rules.Kinds() {
			all[k] = rules.ConditionsFor(k)
		}

		respondJSON(w, http.StatusOK, map[string]any{"conditions": all})
		return
	}

	if !rules.IsValidKind(kind) {
		respondError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"kind":       kind,
		"conditions": rules.ConditionsFor(kind),
	})
}

func (s *Server) inferKind(w http.ResponseWriter, r *http.Request) {
	field := strings.TrimSpace(r.URL.Query().Get("field"))
	if field == "" {
		respondError(w, http.StatusBadRequest, "field is required")
		return
	}

	kind := rules.KindFor(field)
	respondJSON(w, http.StatusOK, map[string]any{
		"field":      field,
		"kind":       kind,
		"conditions": rules.ConditionsFor(kind),
	})
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"rules": s.rules.List()})
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondRuleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule models.ValidationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var created models.ValidationRule
	err := s.commitRules(r.Context(), func(set *ruleset.Set) (err error) {
		created, err = set.Add(rule)
		return err
	})
	if err != nil {
		s.respondRuleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	var rule models.ValidationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var updated models.ValidationRule
	err := s.commitRules(r.Context(), func(set *ruleset.Set) (err error) {
		updated, err = set.Update(chi.URLParam(r, "id"), rule)
		return err
	})
	if err != nil {
		s.respondRuleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) toggleRule(w http.ResponseWriter, r *http.Request) {
	var toggled models.ValidationRule
	err := s.commitRules(r.Context(), func(set *ruleset.Set) (err error) {
		toggled, err = set.Toggle(chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		s.respondRuleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toggled)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	err := s.commitRules(r.Context(), func(set *ruleset.Set) error {
		return set.Delete(chi.URLParam(r, "id"))
	})
	if err != nil {
		s.respondRuleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// commitRules runs change and, when a rule store is configured, saves the
// result in the same step. A failed save leaves the served rules untouched.
func (s *Server) commitRules(ctx context.Context, change func(*ruleset.Set) error) error {
	var save func([]models.ValidationRule) error
	if s.ruleStore != nil {
		save = func(next []models.ValidationRule) error {
			if err := s.ruleStore.Save(ctx, next); err != nil {
				return fmt.Errorf("%w: %v", errPersistRules, err)
			}

			return nil
		}
	}

	return s.rules.Commit(change, save)
}

func (s *Server) respondRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ruleset.ErrNotFound):
		respondError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, models.ErrInvalidRule):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errPersistRules):
		s.logger.Error("failed to persist rules", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to persist rules")
	default:
		s.logger.Error("rule operation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
