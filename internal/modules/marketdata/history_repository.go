package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// HistoryRepository persists daily bars in history.db
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// Upsert stores the bars, replacing any existing row for the same
// (symbol, date). Returns the number of rows written.
func (r *HistoryRepository) Upsert(prices []DailyPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO daily_prices
		(symbol, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.Exec(p.Symbol, p.Date, p.Open, p.High, p.Low,
			p.Close, p.AdjClose, p.Volume); err != nil {
			return 0, fmt.Errorf("failed to upsert bar %s@%d: %w", p.Symbol, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debug().Str("symbol", prices[0].Symbol).Int("rows", len(prices)).Msg("Bars upserted")
	return len(prices), nil
}

// ClosesSince returns (date, adj_close) pairs for the symbol from the cutoff
// on, oldest first.
func (r *HistoryRepository) ClosesSince(symbol string, cutoff int64) ([]int64, []float64, error) {
	rows, err := r.db.Query(`SELECT date, adj_close FROM daily_prices
		WHERE symbol = ? AND date >= ? ORDER BY date ASC`, symbol, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var dates []int64
	var closes []float64
	for rows.Next() {
		var date int64
		var close float64
		if err := rows.Scan(&date, &close); err != nil {
			return nil, nil, fmt.Errorf("failed to scan close: %w", err)
		}
		dates = append(dates, date)
		closes = append(closes, close)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating closes: %w", err)
	}

	return dates, closes, nil
}

// Bars returns full bars for the symbol from the cutoff on, oldest first
func (r *HistoryRepository) Bars(symbol string, cutoff int64) ([]DailyPrice, error) {
	rows, err := r.db.Query(`SELECT symbol, date, open, high, low, close, adj_close, volume
		FROM daily_prices WHERE symbol = ? AND date >= ? ORDER BY date ASC`, symbol, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []DailyPrice
	for rows.Next() {
		var b DailyPrice
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low,
			&b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// LastDate returns the most recent stored date for the symbol, zero when
// the symbol has no history.
func (r *HistoryRepository) LastDate(symbol string) (int64, error) {
	var last sql.NullInt64
	err := r.db.QueryRow(`SELECT MAX(date) FROM daily_prices WHERE symbol = ?`, symbol).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to query last date for %s: %w", symbol, err)
	}
	if !last.Valid {
		return 0, nil
	}
	return last.Int64, nil
}

// RowCount returns the number of stored bars for the symbol
func (r *HistoryRepository) RowCount(symbol string) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM daily_prices WHERE symbol = ?`, symbol).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bars for %s: %w", symbol, err)
	}
	return count, nil
}

// Symbols returns every symbol with stored history
func (r *HistoryRepository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// DeleteBefore removes bars older than the cutoff across all symbols
func (r *HistoryRepository) DeleteBefore(cutoff int64) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM daily_prices WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old bars: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Time("cutoff", time.Unix(cutoff, 0).UTC()).Msg("Old bars deleted")
	}
	return deleted, nil
}
