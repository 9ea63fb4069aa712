package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// HoldingRepository handles holding database operations
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
	}
}

// GetAll returns all holdings in insertion order
func (r *HoldingRepository) GetAll() ([]Holding, error) {
	query := `SELECT id, symbol, shares, buy_price, invested_value, position, created_at
		FROM holdings ORDER BY position ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Shares, &h.BuyPrice,
			&h.InvestedValue, &h.Position, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// Add appends a holding at the end of the insertion order and returns it
// with its position assigned.
func (r *HoldingRepository) Add(h Holding) (Holding, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Holding{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextPos int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position), -1) + 1 FROM holdings`).Scan(&nextPos); err != nil {
		return Holding{}, fmt.Errorf("failed to determine next position: %w", err)
	}

	h.Position = nextPos
	if h.CreatedAt == 0 {
		h.CreatedAt = time.Now().Unix()
	}

	query := `INSERT INTO holdings (id, symbol, shares, buy_price, invested_value, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query, h.ID, h.Symbol, h.Shares, h.BuyPrice,
		h.InvestedValue, h.Position, h.CreatedAt); err != nil {
		return Holding{}, fmt.Errorf("failed to insert holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Holding{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Str("symbol", h.Symbol).Float64("shares", h.Shares).Msg("Holding added")
	return h, nil
}

// RemoveByIndex deletes the holding at the given insertion-order index.
// Returns the removed holding, or nil when the index is out of range.
func (r *HoldingRepository) RemoveByIndex(index int) (*Holding, error) {
	if index < 0 {
		return nil, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var h Holding
	err = tx.QueryRow(`SELECT id, symbol, shares, buy_price, invested_value, position, created_at
		FROM holdings ORDER BY position ASC LIMIT 1 OFFSET ?`, index).
		Scan(&h.ID, &h.Symbol, &h.Shares, &h.BuyPrice, &h.InvestedValue, &h.Position, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find holding at index %d: %w", index, err)
	}

	if _, err := tx.Exec(`DELETE FROM holdings WHERE id = ?`, h.ID); err != nil {
		return nil, fmt.Errorf("failed to delete holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Str("symbol", h.Symbol).Int("index", index).Msg("Holding removed")
	return &h, nil
}

// ReplaceAll swaps the entire portfolio for the given holdings, preserving
// their slice order as insertion order. Used by import.
func (r *HoldingRepository) ReplaceAll(holdings []Holding) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	now := time.Now().Unix()
	query := `INSERT INTO holdings (id, symbol, shares, buy_price, invested_value, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i, h := range holdings {
		createdAt := h.CreatedAt
		if createdAt == 0 {
			createdAt = now
		}
		if _, err := tx.Exec(query, h.ID, h.Symbol, h.Shares, h.BuyPrice,
			h.InvestedValue, i, createdAt); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Int("count", len(holdings)).Msg("Portfolio replaced")
	return nil
}

// Count returns the number of holdings
func (r *HoldingRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM holdings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count holdings: %w", err)
	}
	return count, nil
}

// Symbols returns the distinct symbols across all holdings, ordered by the
// first position at which each symbol appears.
func (r *HoldingRepository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT symbol, MIN(position) AS first_pos
		FROM holdings GROUP BY symbol ORDER BY first_pos ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		var firstPos int
		if err := rows.Scan(&sym, &firstPos); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}
