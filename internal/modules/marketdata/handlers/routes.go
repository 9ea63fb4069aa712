package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/marketdata", func(r chi.Router) {
		r.Get("/quotes", h.HandleGetQuotes)
		r.Get("/history/{symbol}", h.HandleGetHistory)
		r.Get("/summary/{symbol}", h.HandleGetSummary)
		r.Get("/indicators/{symbol}", h.HandleGetIndicators)
		r.Get("/quality", h.HandleGetQuality)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/validate/{symbol}", h.HandleValidateSymbol)
	})
}
