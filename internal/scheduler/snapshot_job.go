package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ValueSource supplies the portfolio's current value and holding count.
// Implemented by the portfolio module's service.
type ValueSource interface {
	Value() (float64, error)
	HoldingsCount() (int, error)
}

// SnapshotStore records point-in-time portfolio values.
// Implemented by the portfolio module's snapshot repository.
type SnapshotStore interface {
	Save(totalValue float64, holdingsCount int) error
}

// SnapshotJob records the current portfolio value so the value-history
// charts have a series to draw. An empty portfolio still records a zero
// snapshot; gaps would read as missing data rather than a flat line.
type SnapshotJob struct {
	values ValueSource
	store  SnapshotStore
	log    zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(values ValueSource, store SnapshotStore, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		values: values,
		store:  store,
		log:    log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "portfolio_snapshot"
}

// Run records a portfolio value snapshot
func (j *SnapshotJob) Run() error {
	value, err := j.values.Value()
	if err != nil {
		return fmt.Errorf("failed to compute portfolio value: %w", err)
	}

	count, err := j.values.HoldingsCount()
	if err != nil {
		return fmt.Errorf("failed to count holdings: %w", err)
	}

	if err := j.store.Save(value, count); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	j.log.Info().
		Float64("total_value", value).
		Int("holdings", count).
		Msg("Portfolio snapshot recorded")

	return nil
}
