// Package handlers provides stateless HTTP endpoints over the qubo evaluator.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/rs/zerolog"
)

// Handler handles qubo HTTP requests
type Handler struct {
	evaluator *qubo.Evaluator
	log       zerolog.Logger
}

// NewHandler creates a new qubo handler
func NewHandler(evaluator *qubo.Evaluator, log zerolog.Logger) *Handler {
	return &Handler{
		evaluator: evaluator,
		log:       log.With().Str("handler", "qubo").Logger(),
	}
}

// ProblemRequest is the common body of every qubo endpoint.
// penalty_scale may be omitted, in which case the heuristic default is used.
// An explicit value, zero included, is passed through and validated.
type ProblemRequest struct {
	Mu    []float64   `json:"mu"`
	Sigma [][]float64 `json:"sigma"`
	qubo.Params
	PenaltyScale *float64 `json:"penalty_scale,omitempty"` // shadows Params.PenaltyScale

	Top       int            `json:"top,omitempty"`       // evaluate: rows to return, 0 = all
	Selection qubo.Selection `json:"selection,omitempty"` // objective: candidate to score
}

func (p *ProblemRequest) params() qubo.Params {
	params := p.Params
	if p.PenaltyScale != nil {
		params.PenaltyScale = *p.PenaltyScale
	} else {
		params.PenaltyScale = qubo.DefaultPenaltyScale(len(p.Mu))
	}
	return params
}

// HandleEvaluate returns the ranked score table
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.Top < 0 {
		h.writeError(w, http.StatusBadRequest, "top must be >= 0")
		return
	}
	params := req.params()
	table, err := h.evaluator.EvaluateAll(req.Mu, req.Sigma, params)
	if err != nil {
		h.writeEvaluatorError(w, err)
		return
	}

	candidates := len(table)
	if req.Top > 0 && req.Top < len(table) {
		table = table[:req.Top]
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"params":     params,
		"candidates": candidates,
		"best":       table[0],
		"table":      table,
	})
}

// HandleMinimize returns the lowest-objective selection
func (h *Handler) HandleMinimize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	params := req.params()
	best, err := h.evaluator.Minimize(req.Mu, req.Sigma, params)
	if err != nil {
		h.writeEvaluatorError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"params": params,
		"best":   best,
	})
}

// HandleFormulate returns the QUBO matrix and offset
func (h *Handler) HandleFormulate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	params := req.params()
	f, err := qubo.Formulate(req.Mu, req.Sigma, params)
	if err != nil {
		h.writeEvaluatorError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"params":                   params,
		"quadratic":                f.Quadratic,
		"offset":                   f.Offset,
		"sufficient_penalty_scale": qubo.SufficientPenaltyScale(req.Mu, req.Sigma, params.RiskFactor),
	})
}

// HandleObjective scores a single selection
func (h *Handler) HandleObjective(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	params := req.params()
	value, err := qubo.Objective(req.Mu, req.Sigma, params, req.Selection)
	if err != nil {
		h.writeEvaluatorError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"objective": value,
		"index":     qubo.Encode(req.Selection),
		"count":     req.Selection.Count(),
		"feasible":  req.Selection.Count() == params.Budget,
	})
}

// Helper methods

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*ProblemRequest, bool) {
	var req ProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return &req, true
}

func (h *Handler) writeEvaluatorError(w http.ResponseWriter, err error) {
	if qubo.IsValidationError(err) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Evaluation failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
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
