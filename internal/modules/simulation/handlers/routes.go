package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers simulation module routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/simulation", func(r chi.Router) {
		r.Post("/portfolio", h.HandleSimulatePortfolio)
		r.Post("/asset/{symbol}", h.HandleSimulateAsset)
	})
}
