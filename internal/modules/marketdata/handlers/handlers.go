// Package handlers provides HTTP handlers for market data operations.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/marketdata"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles market data HTTP requests
type Handler struct {
	service  *marketdata.Service
	lookback int
	log      zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(service *marketdata.Service, lookbackDays int, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		lookback: lookbackDays,
		log:      log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleGetQuotes handles GET /api/marketdata/quotes?symbols=AAPL,MSFT
func (h *Handler) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols parameter is required")
		return
	}

	quotes, err := h.service.QuoteDetails(symbols)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	var missing []string
	for _, sym := range symbols {
		if _, ok := quotes[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	if missing == nil {
		missing = []string{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"quotes": quotes,
		},
		"metadata": map[string]interface{}{
			"timestamp":       time.Now().Format(time.RFC3339),
			"missing_symbols": missing,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetHistory handles GET /api/marketdata/history/{symbol}
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	days, err := h.daysParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := h.service.History(symbol, days)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if bars == nil {
		bars = []marketdata.DailyPrice{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"bars":   bars,
		},
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": days,
			"count":         len(bars),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetSummary handles GET /api/marketdata/summary/{symbol}
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	days, err := h.daysParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.service.Summary(symbol, days)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": days,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetIndicators handles GET /api/marketdata/indicators/{symbol}
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	days, err := h.daysParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	indicators, err := h.service.Indicators(symbol, days)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": indicators,
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": days,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetQuality handles GET /api/marketdata/quality
// With ?symbol= it scores one symbol, otherwise every tracked symbol.
func (h *Handler) HandleGetQuality(w http.ResponseWriter, r *http.Request) {
	if symbol := strings.ToUpper(r.URL.Query().Get("symbol")); symbol != "" {
		report, err := h.service.Quality(symbol)
		if err != nil {
			h.writeError(w, statusForError(err), err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"data":     report,
			"metadata": map[string]interface{}{"timestamp": time.Now().Format(time.RFC3339)},
		})
		return
	}

	reports, err := h.service.QualityAll()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if reports == nil {
		reports = []marketdata.QualityReport{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"reports": reports,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// refreshRequest is the optional POST /refresh body
type refreshRequest struct {
	Symbols      []string `json:"symbols"`
	LookbackDays int      `json:"lookback_days"`
}

// HandleRefresh handles POST /api/marketdata/refresh
// Without a body it refreshes every tracked symbol over the default window.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		tracked, err := h.service.TrackedSymbols()
		if err != nil {
			h.writeError(w, statusForError(err), err.Error())
			return
		}
		symbols = tracked
	}
	if len(symbols) == 0 {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{
				"counts": map[string]int{}, "total": 0,
			},
			"metadata": map[string]interface{}{"timestamp": time.Now().Format(time.RFC3339)},
		})
		return
	}

	days := req.LookbackDays
	if days <= 0 {
		days = h.lookback
	}

	counts, err := h.service.RefreshHistory(symbols, days)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	h.log.Info().Int("symbols", len(symbols)).Int("bars", total).Msg("History refresh complete")

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"counts": counts,
			"total":  total,
		},
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": days,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleValidateSymbol handles GET /api/marketdata/validate/{symbol}
func (h *Handler) HandleValidateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	valid, err := h.service.ValidateSymbol(symbol)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"valid":  valid,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// daysParam reads the optional ?days= override
func (h *Handler) daysParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return h.lookback, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, &domain.InvalidParameterError{Name: "days", Reason: "must be a positive whole number"}
	}
	return days, nil
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

// statusForError maps typed domain errors to HTTP status codes
func statusForError(err error) int {
	var invalidErr *domain.InvalidParameterError
	var insufficientErr *domain.InsufficientDataError

	switch {
	case errors.As(err, &invalidErr):
		return http.StatusBadRequest
	case errors.As(err, &insufficientErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
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
