package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all qubo routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/qubo", func(r chi.Router) {
		r.Post("/evaluate", h.HandleEvaluate)   // Full ranked table
		r.Post("/minimize", h.HandleMinimize)   // Best selection only
		r.Post("/formulate", h.HandleFormulate) // QUBO matrix for external solvers
		r.Post("/objective", h.HandleObjective) // Score one selection
	})
}
