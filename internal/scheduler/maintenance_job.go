package scheduler

import (
	"fmt"

	"github.com/aristath/vigil/internal/database"
	"github.com/rs/zerolog"
)

// QuotePurger evicts expired quote cache entries.
// Implemented by the market data service.
type QuotePurger interface {
	PurgeQuoteCache() (int64, error)
}

// SnapshotPruner trims old portfolio value snapshots.
// Implemented by the portfolio module's snapshot repository.
type SnapshotPruner interface {
	Prune(retentionDays int) (int64, error)
}

// MaintenanceJob keeps the SQLite files healthy: WAL checkpoints on every
// database, expired quote cache eviction, and snapshot pruning. Checkpoint
// failures are logged but never abort the run; a bloated WAL is recoverable,
// a skipped purge is not worth a failed job.
type MaintenanceJob struct {
	databases         map[string]*database.DB
	quotes            QuotePurger
	snapshots         SnapshotPruner
	snapshotRetention int
	log               zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(
	databases map[string]*database.DB,
	quotes QuotePurger,
	snapshots SnapshotPruner,
	snapshotRetentionDays int,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		databases:         databases,
		quotes:            quotes,
		snapshots:         snapshots,
		snapshotRetention: snapshotRetentionDays,
		log:               log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	for name, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	if j.quotes != nil {
		purged, err := j.quotes.PurgeQuoteCache()
		if err != nil {
			return fmt.Errorf("quote cache purge failed: %w", err)
		}
		if purged > 0 {
			j.log.Info().Int64("purged", purged).Msg("Expired quotes evicted")
		}
	}

	if j.snapshots != nil && j.snapshotRetention > 0 {
		pruned, err := j.snapshots.Prune(j.snapshotRetention)
		if err != nil {
			return fmt.Errorf("snapshot prune failed: %w", err)
		}
		if pruned > 0 {
			j.log.Info().Int64("pruned", pruned).Msg("Old snapshots pruned")
		}
	}

	return nil
}
