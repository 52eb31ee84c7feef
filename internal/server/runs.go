package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/report"
	"github.com/kx0101/sessioncheck/internal/stats"
	"github.com/kx0101/sessioncheck/internal/store"
)

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid after timestamp")
			return
		}
		filter.After = &t
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		filter.Before = &t
	}
	filter.FailedOnly = q.Get("failed") == "true"

	items, total, err := s.history.ListRuns(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"runs":  items,
		"total": total,
	})
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*models.ValidationRun, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}

	run, err := s.history.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}

	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return nil, false
	}

	return run, true
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (s *Server) getRunCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\"validation-"+run.ID.String()+".csv\"")

	if err := output.WriteCSV(w, run.Results); err != nil {
		s.logger.Error("failed to write csv", "run_id", run.ID, "error", err)
	}
}

func (s *Server) getRunReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := report.RenderHTML(w, run.Results, stats.Summarize(run.Results), "run "+run.ID.String()); err != nil {
		s.logger.Error("failed to render report", "run_id", run.ID, "error", err)
	}
}
