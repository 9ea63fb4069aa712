package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BackupRunner creates and uploads a full backup archive.
// Implemented by the reliability module's R2 backup service.
type BackupRunner interface {
	CreateAndUploadBackup(ctx context.Context) error
	RotateBackups(ctx context.Context) error
}

// BackupJob runs the nightly cloud backup and rotates old archives.
type BackupJob struct {
	backup  BackupRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backup BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:  backup,
		timeout: 15 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates, uploads and rotates backups
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if err := j.backup.RotateBackups(ctx); err != nil {
		// The new backup is already uploaded; rotation can wait a day.
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
