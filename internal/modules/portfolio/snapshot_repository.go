package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotRepository records total portfolio value over time
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save records a snapshot at the current time
func (r *SnapshotRepository) Save(totalValue float64, holdingsCount int) error {
	query := `INSERT INTO portfolio_snapshots (total_value, holdings_count, created_at)
		VALUES (?, ?, ?)`
	if _, err := r.db.Exec(query, totalValue, holdingsCount, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	r.log.Debug().Float64("total_value", totalValue).Int("holdings", holdingsCount).Msg("Snapshot saved")
	return nil
}

// History returns snapshots from the last N days, oldest first.
// A non-positive days value returns the full recorded history.
func (r *SnapshotRepository) History(days int) ([]Snapshot, error) {
	var cutoff int64
	if days > 0 {
		cutoff = time.Now().AddDate(0, 0, -days).Unix()
	}

	rows, err := r.db.Query(`SELECT id, total_value, holdings_count, created_at
		FROM portfolio_snapshots WHERE created_at >= ? ORDER BY created_at ASC, id ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.TotalValue, &s.HoldingsCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// Latest returns the most recent snapshot, or nil when none exist
func (r *SnapshotRepository) Latest() (*Snapshot, error) {
	var s Snapshot
	err := r.db.QueryRow(`SELECT id, total_value, holdings_count, created_at
		FROM portfolio_snapshots ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&s.ID, &s.TotalValue, &s.HoldingsCount, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	return &s, nil
}

// Prune deletes snapshots older than the retention window
func (r *SnapshotRepository) Prune(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	result, err := r.db.Exec(`DELETE FROM portfolio_snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Int("retention_days", retentionDays).Msg("Old snapshots pruned")
	}
	return deleted, nil
}
