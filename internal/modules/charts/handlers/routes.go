package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all chart routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/charts", func(r chi.Router) {
		r.Get("/value", h.HandleGetValueHistory)
		r.Get("/value.png", h.HandleGetValueHistoryPNG)
		r.Get("/price/{symbol}", h.HandleGetPrice)
		r.Get("/price/{symbol}.png", h.HandleGetPricePNG)
		r.Get("/sparklines", h.HandleGetSparklines)
		r.Get("/allocation.png", h.HandleGetAllocationPNG)
		r.Get("/simulation.png", h.HandleGetOutcomesPNG)
		r.Get("/scenario/{symbol}.png", h.HandleGetScenarioPNG)
	})
}
