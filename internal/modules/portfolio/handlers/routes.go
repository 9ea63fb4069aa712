package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleListHoldings)
		r.Post("/", h.HandleAddHolding)
		r.Delete("/{index}", h.HandleRemoveHolding)

		r.Get("/value", h.HandleGetValue)
		r.Get("/weights", h.HandleGetWeights)
		r.Get("/allocations", h.HandleGetAllocations)
		r.Get("/history", h.HandleGetHistory)

		r.Get("/export", h.HandleExportJSON)
		r.Post("/import", h.HandleImportJSON)
		r.Get("/export.csv", h.HandleExportCSV)
		r.Post("/import.csv", h.HandleImportCSV)
	})
}
