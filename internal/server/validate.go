package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kx0101/sessioncheck/internal/artifacts"
	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/rules"
	"github.com/kx0101/sessioncheck/internal/stats"
)

type validateRequest struct {
	Sessions   []models.Session        `json:"sessions"`
	SessionIDs []string                `json:"sessionIds"`
	Rules      []models.ValidationRule `json:"rules"`
	Labels     map[string]string       `json:"labels,omitempty"`
	Upload     bool                    `json:"upload"`
}

type validateResponse struct {
	RunID       string                    `json:"runId"`
	Summary     stats.Summary             `json:"summary"`
	Results     []models.ValidationResult `json:"results"`
	ExportKey   string                    `json:"exportKey,omitempty"`
	ExportError string                    `json:"exportError,omitempty"`
}

var errNoProvider = errors.New("no session provider configured")

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	enabled, err := s.rulesFor(req.Rules)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(enabled) == 0 {
		respondError(w, http.StatusBadRequest, "no enabled rules to validate against")
		return
	}

	sessions, err := s.sessionsFor(r.Context(), req)
	switch {
	case errors.Is(err, errNoProvider):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, input.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("failed to load sessions", "error", err)
		respondError(w, http.StatusBadGateway, "failed to load sessions")
		return
	}

	if len(sessions) == 0 {
		respondError(w, http.StatusBadRequest, "no sessions to validate")
		return
	}

	start := time.Now()
	results := rules.RunParallel(sessions, enabled, s.workers)
	elapsed := time.Since(start)

	s.metrics.Observe(results, elapsed)

	run := models.NewValidationRun(len(enabled), results, req.Labels)
	if err := s.history.SaveRun(r.Context(), run); err != nil {
		s.logger.Error("failed to save run", "run_id", run.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save run")
		return
	}

	s.logger.Info("validation run finished",
		"run_id", run.ID,
		"sessions", run.SessionCount,
		"rules", run.RuleCount,
		"failed", run.Failed,
		"duration", elapsed,
	)

	resp := validateResponse{
		RunID:   run.ID.String(),
		Summary: stats.Summarize(results),
		Results: results,
	}

	if req.Upload {
		key, err := s.exportCSV(r.Context(), run)
		if err != nil {
			s.logger.Warn("export upload failed", "run_id", run.ID, "error", err)
			resp.ExportError = err.Error()
		} else {
			resp.ExportKey = key
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// rulesFor returns the enabled rules of the request, or a snapshot of the
// stored set when the request carries none.
func (s *Server) rulesFor(requested []models.ValidationRule) ([]models.ValidationRule, error) {
	if requested == nil {
		return s.rules.Snapshot(), nil
	}

	rules.Normalize(requested)
	if err := rules.ValidateRules(requested); err != nil {
		return nil, err
	}

	return rules.EnabledRules(requested), nil
}

func (s *Server) sessionsFor(ctx context.Context, req validateRequest) ([]models.Session, error) {
	sessions := append([]models.Session(nil), req.Sessions...)
	if len(req.SessionIDs) == 0 {
		return sessions, nil
	}

	if s.provider == nil {
		return nil, errNoProvider
	}

	for _, id := range req.SessionIDs {
		session, err := s.provider.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (s *Server) exportCSV(ctx context.Context, run *models.ValidationRun) (string, error) {
	var buf bytes.Buffer
	if err := output.WriteCSV(&buf, run.Results); err != nil {
		return "", fmt.Errorf("render csv: %w", err)
	}

	key := artifacts.ExportKey(s.exportPrefix, run.ID, "csv")
	if err := s.artifacts.Put(ctx, key, artifacts.ContentType("csv"), buf.Bytes()); err != nil {
		return "", err
	}

	return key, nil
}
