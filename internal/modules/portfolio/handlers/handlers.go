// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service   *portfolio.Service
	snapshots *portfolio.SnapshotRepository
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, snapshots *portfolio.SnapshotRepository, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		snapshots: snapshots,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleListHoldings returns all holdings in insertion order
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.Holdings()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if holdings == nil {
		holdings = []portfolio.Holding{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     holdings,
		"metadata": h.metadata(),
	})
}

type addHoldingRequest struct {
	Symbol   string  `json:"symbol"`
	Shares   float64 `json:"shares"`
	BuyPrice float64 `json:"buy_price"`
}

// HandleAddHolding creates a new holding from the request body
func (h *Handler) HandleAddHolding(w http.ResponseWriter, r *http.Request) {
	var req addHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	holding, err := h.service.Add(req.Symbol, req.Shares, req.BuyPrice)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data":     holding,
		"metadata": h.metadata(),
	})
}

// HandleRemoveHolding deletes the holding at the given insertion-order index
func (h *Handler) HandleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	removed, err := h.service.Remove(index)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if removed == nil {
		h.writeError(w, http.StatusNotFound, "no holding at index "+strconv.Itoa(index))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     removed,
		"metadata": h.metadata(),
	})
}

// HandleGetValue returns the current portfolio value
func (h *Handler) HandleGetValue(w http.ResponseWriter, r *http.Request) {
	value, err := h.service.Value()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	holdings, err := h.service.Holdings()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	invested := 0.0
	for _, holding := range holdings {
		invested += holding.InvestedValue
	}

	data := map[string]interface{}{
		"total_value":    value,
		"invested_value": invested,
		"holdings_count": len(holdings),
	}
	if invested > 0 {
		data["gain_abs"] = value - invested
		data["gain_pct"] = (value - invested) / invested * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     data,
		"metadata": h.metadata(),
	})
}

// HandleGetWeights returns the per-symbol weight vector used by analytics
func (h *Handler) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	symbols, weights, totalValue, err := h.service.PortfolioWeights()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]map[string]interface{}, len(symbols))
	for i, sym := range symbols {
		entries[i] = map[string]interface{}{
			"symbol": sym,
			"weight": weights[i],
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"weights":     entries,
			"total_value": totalValue,
		},
		"metadata": h.metadata(),
	})
}

// HandleGetAllocations returns the per-holding allocation table
func (h *Handler) HandleGetAllocations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Allocations()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []portfolio.AllocationRow{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     rows,
		"metadata": h.metadata(),
	})
}

// HandleGetHistory returns portfolio value snapshots for the last N days
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := 90
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	history, err := h.snapshots.History(days)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []portfolio.Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     history,
		"metadata": h.metadata(),
	})
}

// HandleExportJSON streams the portfolio as a downloadable JSON document
func (h *Handler) HandleExportJSON(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportJSON()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write JSON export")
	}
}

// HandleImportJSON replaces the portfolio with the uploaded JSON document
func (h *Handler) HandleImportJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	count, err := h.service.ImportJSON(body)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     map[string]interface{}{"imported": count},
		"metadata": h.metadata(),
	})
}

// HandleExportCSV streams the portfolio as a downloadable CSV
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportCSV()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// HandleImportCSV replaces the portfolio with the uploaded CSV
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	count, err := h.service.ImportCSV(body)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     map[string]interface{}{"imported": count},
		"metadata": h.metadata(),
	})
}

func (h *Handler) metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

func statusForError(err error) int {
	var invalidErr *domain.InvalidParameterError
	if errors.As(err, &invalidErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
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
