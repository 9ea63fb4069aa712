package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
)

// SymbolSource supplies the symbols whose history should be kept fresh.
// Implemented by the portfolio module's holding repository.
type SymbolSource interface {
	Symbols() ([]string, error)
}

// HistoryRefresher performs the incremental price-history ingest.
// Implemented by the market data service.
type HistoryRefresher interface {
	RefreshHistory(symbols []string, lookbackDays int) (map[string]int, error)
}

// RefreshHistoryJob ingests missing daily bars for every held symbol.
// Symbols already up to date are skipped inside the refresher, so running
// this more often than once per trading day is cheap.
type RefreshHistoryJob struct {
	symbols   SymbolSource
	refresher HistoryRefresher
	lookback  int
	log       zerolog.Logger
}

// NewRefreshHistoryJob creates a new history refresh job
func NewRefreshHistoryJob(symbols SymbolSource, refresher HistoryRefresher, lookbackDays int, log zerolog.Logger) *RefreshHistoryJob {
	return &RefreshHistoryJob{
		symbols:   symbols,
		refresher: refresher,
		lookback:  lookbackDays,
		log:       log.With().Str("job", "refresh_history").Logger(),
	}
}

// Name returns the job name
func (j *RefreshHistoryJob) Name() string {
	return "refresh_history"
}

// Run executes the history refresh
func (j *RefreshHistoryJob) Run() error {
	symbols, err := j.symbols.Symbols()
	if err != nil {
		return fmt.Errorf("failed to list held symbols: %w", err)
	}
	if len(symbols) == 0 {
		j.log.Debug().Msg("No holdings, nothing to refresh")
		return nil
	}

	ingested, err := j.refresher.RefreshHistory(symbols, j.lookback)
	if err != nil {
		return fmt.Errorf("history refresh failed: %w", err)
	}

	total := 0
	for _, n := range ingested {
		total += n
	}
	j.log.Info().
		Int("symbols", len(symbols)).
		Int("rows_ingested", total).
		Msg("History refresh completed")

	return nil
}
