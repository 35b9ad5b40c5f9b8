package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market-data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/marketdata", func(r chi.Router) {
		r.Get("/estimate", h.HandleEstimate)      // Mu and sigma for a universe
		r.Post("/history", h.HandleImportHistory) // Import daily closes
	})
}
