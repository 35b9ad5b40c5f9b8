// Package handlers provides HTTP handlers for market data.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/rs/zerolog"
)

// Handler handles market-data HTTP requests
type Handler struct {
	service *marketdata.Service
	history *marketdata.HistoryProvider
	log     zerolog.Logger
}

// NewHandler creates a new market-data handler. history may be nil, which disables imports.
func NewHandler(service *marketdata.Service, history *marketdata.HistoryProvider, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		history: history,
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleEstimate returns mu and sigma for a universe.
// Query: assets (comma separated), start, end, source, seed, method, ema_period, shrinkage.
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	req, err := parseEstimateQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	est, err := h.service.Estimate(r.Context(), req)
	if err != nil {
		if isClientError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to estimate")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, est)
}

// ImportRequest is the body of POST /marketdata/history
type ImportRequest struct {
	Asset  string `json:"asset"`
	Prices []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	} `json:"prices"`
}

// HandleImportHistory stores daily closes for one asset
func (h *Handler) HandleImportHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "History storage is not configured")
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Asset == "" || len(req.Prices) == 0 {
		h.writeError(w, http.StatusBadRequest, "asset and prices are required")
		return
	}

	series := &marketdata.Series{
		Assets: []string{req.Asset},
		Prices: [][]float64{make([]float64, len(req.Prices))},
	}
	for i, p := range req.Prices {
		date, err := time.Parse(marketdata.DateLayout, p.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", p.Date))
			return
		}
		if p.Close <= 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("close on %s must be positive", p.Date))
			return
		}
		series.Dates = append(series.Dates, date)
		series.Prices[0][i] = p.Close
	}

	if err := h.history.StoreSeries(r.Context(), series); err != nil {
		h.log.Error().Err(err).Str("asset", req.Asset).Msg("Failed to import history")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":  req.Asset,
		"stored": len(req.Prices),
	})
}

func parseEstimateQuery(r *http.Request) (marketdata.Request, error) {
	q := r.URL.Query()
	req := marketdata.Request{
		Source: q.Get("source"),
		Options: marketdata.EstimatorOptions{
			Method: q.Get("method"),
		},
	}

	for _, a := range strings.Split(q.Get("assets"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			req.Assets = append(req.Assets, a)
		}
	}

	var err error
	if req.Start, err = time.Parse(marketdata.DateLayout, q.Get("start")); err != nil {
		return req, fmt.Errorf("start must be a %s date", marketdata.DateLayout)
	}
	if req.End, err = time.Parse(marketdata.DateLayout, q.Get("end")); err != nil {
		return req, fmt.Errorf("end must be a %s date", marketdata.DateLayout)
	}

	if raw := q.Get("seed"); raw != "" {
		if req.Seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return req, fmt.Errorf("seed must be an integer")
		}
	}
	if raw := q.Get("ema_period"); raw != "" {
		if req.Options.EMAPeriod, err = strconv.Atoi(raw); err != nil {
			return req, fmt.Errorf("ema_period must be an integer")
		}
	}
	if raw := q.Get("shrinkage"); raw != "" {
		if req.Options.Shrinkage, err = strconv.ParseBool(raw); err != nil {
			return req, fmt.Errorf("shrinkage must be a boolean")
		}
	}

	return req, nil
}

func isClientError(err error) bool {
	return errors.Is(err, marketdata.ErrNoAssets) ||
		errors.Is(err, marketdata.ErrInvalidRange) ||
		errors.Is(err, marketdata.ErrInsufficientData) ||
		errors.Is(err, marketdata.ErrInvalidRequest)
}

// Helper methods

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
