// Package handlers provides HTTP handlers for solver runs.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles run HTTP requests
type Handler struct {
	service *runs.Service
	log     zerolog.Logger
}

// NewHandler creates a new runs handler
func NewHandler(service *runs.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "runs").Logger(),
	}
}

// SolveRequest is the JSON body of POST /runs
type SolveRequest struct {
	Source string      `json:"source"`
	Mode   string      `json:"mode"`
	Assets []string    `json:"assets"`
	Mu     []float64   `json:"mu"`
	Sigma  [][]float64 `json:"sigma"`
	Start  string      `json:"start"`
	End    string      `json:"end"`
	Seed   int64       `json:"seed"`
	Top    int         `json:"top"`

	qubo.Params
	PenaltyScale *float64 `json:"penalty_scale,omitempty"` // omitted selects the heuristic default
	marketdata.EstimatorOptions
}

func (r SolveRequest) toServiceRequest() (runs.SolveRequest, error) {
	req := runs.SolveRequest{
		Source:    r.Source,
		Mode:      r.Mode,
		Assets:    r.Assets,
		Mu:        r.Mu,
		Sigma:     r.Sigma,
		Seed:      r.Seed,
		Estimator: r.EstimatorOptions,
		Params:    r.Params,
		TopN:      r.Top,
	}
	if r.PenaltyScale != nil {
		req.Params.PenaltyScale = *r.PenaltyScale
	} else {
		req.DefaultPenalty = true
	}

	var err error
	if r.Start != "" {
		if req.Start, err = time.Parse(marketdata.DateLayout, r.Start); err != nil {
			return req, fmt.Errorf("%w: invalid start date %q", runs.ErrInvalidRequest, r.Start)
		}
	}
	if r.End != "" {
		if req.End, err = time.Parse(marketdata.DateLayout, r.End); err != nil {
			return req, fmt.Errorf("%w: invalid end date %q", runs.ErrInvalidRequest, r.End)
		}
	}
	return req, nil
}

// HandleCreateRun solves a problem and stores the run
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var body SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := body.toServiceRequest()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.service.Solve(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, run)
}

// HandleListRuns returns recent runs without score tables
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}

// HandleGetRun returns one run with its stored table
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// HandleDeleteRun removes a run
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper methods

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runs.ErrRunNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case runs.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Run request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
