package handlers

import (
	"errors"
	"net/http"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
)

// RunHandler serves recorded comparison runs.
type RunHandler struct {
	store  run.Store
	logger logger.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(store run.Store, log logger.Logger) *RunHandler {
	return &RunHandler{
		store:  store,
		logger: log,
	}
}

// RunResponse is a run together with its per-shot results.
type RunResponse struct {
	*run.Run
	Results []*run.Result `json:"results"`
}

// List handles listing runs, newest first.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	runs, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "failed to count runs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(runs, total, limit, offset))
}

// GetByID handles getting a single run with its results.
func (h *RunHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "run")
	if !ok {
		return
	}

	rn, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error(r.Context(), "failed to get run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	results, err := h.store.ListResults(r.Context(), id)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list results", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	respondJSON(w, http.StatusOK, RunResponse{Run: rn, Results: results})
}
