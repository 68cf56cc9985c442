package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	var stage *domain.Stage
	if raw := r.URL.Query().Get("stage"); raw != "" {
		parsed, ok := domain.ParseStage(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown stage", s.logger)
			return
		}
		stage = &parsed
	}
	limit, offset := pagination(r)
	runs, err := s.runs.List(r.Context(), stage, limit, offset)
	if err != nil {
		s.logger.Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed", s.logger)
		return
	}
	if runs == nil {
		runs = []domain.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs}, s.logger)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id", s.logger)
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found", s.logger)
			return
		}
		s.logger.Error("get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, run, s.logger)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id", s.logger)
		return
	}
	if err := s.pipeline.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found", s.logger)
			return
		}
		s.logger.Error("cancel run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cancel failed", s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"}, s.logger)
}

func (s *Server) startStage(w http.ResponseWriter, r *http.Request) {
	stage, ok := domain.ParseStage(chi.URLParam(r, "stage"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown stage", s.logger)
		return
	}
	var params domain.StageParams
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
			return
		}
	}
	run, err := s.pipeline.Start(r.Context(), stage, params)
	if err != nil {
		s.logger.Error("start stage", zap.String("stage", string(stage)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "start stage failed", s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, run, s.logger)
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CompanyFilter{ActiveOnly: q.Get("active") == "true"}
	if raw := q.Get("ats"); raw != "" {
		ats := domain.ATSType(raw)
		filter.ATSType = &ats
	}
	filter.Limit, filter.Offset = pagination(r)

	companies, err := s.companies.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list companies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list companies failed", s.logger)
		return
	}
	if companies == nil {
		companies = []domain.Company{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies}, s.logger)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company id", s.logger)
		return
	}
	company, err := s.companies.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "company not found", s.logger)
			return
		}
		s.logger.Error("get company", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get company failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, company, s.logger)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.JobFilter{
		RoleFamily: q.Get("role_family"),
		Seniority:  q.Get("seniority"),
		ActiveOnly: q.Get("active") == "true",
	}
	if raw := q.Get("company_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid company id", s.logger)
			return
		}
		filter.CompanyID = &id
	}
	if raw := q.Get("remote"); raw != "" {
		remote := raw == "true"
		filter.Remote = &remote
	}
	filter.Limit, filter.Offset = pagination(r)

	jobs, err := s.jobs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list jobs failed", s.logger)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs}, s.logger)
}

func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
