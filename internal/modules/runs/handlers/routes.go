package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.HandleCreateRun)       // Solve and store
		r.Get("/", h.HandleListRuns)         // Recent runs, newest first
		r.Get("/{id}", h.HandleGetRun)       // One run with its score table
		r.Delete("/{id}", h.HandleDeleteRun) // Remove a run
	})
}
