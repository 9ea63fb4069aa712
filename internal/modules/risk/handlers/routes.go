package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/metrics", h.HandleGetMetrics)
		r.Get("/contributions", h.HandleGetContributions)
		r.Get("/correlation", h.HandleGetCorrelation)
		r.Get("/volatilities", h.HandleGetVolatilities)
		r.Get("/summary", h.HandleGetSummary)
	})
}
