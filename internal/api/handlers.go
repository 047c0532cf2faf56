package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/observability"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

const defaultDays = 30

func (s *Server) handleListVacancies(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, store.DefaultLimit)
	q := r.URL.Query()

	days := defaultDays
	if v := q.Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}

	latest := false
	if v := q.Get("latest"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "latest must be a boolean")
			return
		}
		latest = parsed
	}

	items, total, err := s.reader.ListVacancies(r.Context(), store.Query{
		Company: strings.TrimSpace(q.Get("company")),
		Vacancy: strings.TrimSpace(q.Get("vacancy")),
		Days:    days,
		Latest:  latest,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.log.Error("list vacancies failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch vacancies: "+err.Error())
		return
	}
	if items == nil {
		items = []store.Vacancy{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePagination(r, store.DefaultLimit)

	batches, err := s.reader.ListBatches(r.Context(), limit)
	if err != nil {
		s.log.Error("list batches failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch batches: "+err.Error())
		return
	}
	if batches == nil {
		batches = []store.BatchSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": batches,
		"limit": limit,
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	report, ok := s.runs.LastReport()
	if !ok {
		respondError(w, http.StatusNotFound, "No run has been started yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runs.Trigger(s.base)
	if errors.Is(err, core.ErrRunInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to start run: "+err.Error())
		return
	}
	s.log.Info("run triggered over http", "run_id", id)
	respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state": s.runs.State(),
		"stats": observability.Snapshot(),
	})
}

// parsePagination clamps limit to [1, store.MaxLimit] and offset to >= 0.
func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > store.MaxLimit {
		limit = store.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
