package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	backupPrefix = "backups/"

	// Rotation never deletes below this count, whatever the retention
	// window says. A misconfigured clock must not wipe every backup.
	minBackupsKept = 3
)

// BackupMetadata describes a full backup archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// BackupInfo describes a backup stored in R2
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// R2BackupService manages cloud backups to Cloudflare R2
type R2BackupService struct {
	r2            *R2Client
	backupService *BackupService
	dataDir       string
	retentionDays int
	log           zerolog.Logger
}

// NewR2BackupService creates a new R2 backup service
func NewR2BackupService(
	r2 *R2Client,
	backupService *BackupService,
	dataDir string,
	retentionDays int,
	log zerolog.Logger,
) *R2BackupService {
	return &R2BackupService{
		r2:            r2,
		backupService: backupService,
		dataDir:       dataDir,
		retentionDays: retentionDays,
		log:           log.With().Str("service", "r2_backup").Logger(),
	}
}

// CreateAndUploadBackup stages every database, verifies the copies, packs
// them with their metadata into a tar.gz archive and uploads it to R2.
// The staging directory is removed whether or not the upload succeeds.
func (s *R2BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting R2 backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "r2-staging")
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clean staging directory")
		}
	}()

	databases, err := s.backupService.StageBackup(stagingDir)
	if err != nil {
		return fmt.Errorf("failed to stage backup: %w", err)
	}

	if err := s.backupService.VerifyStaged(stagingDir, databases); err != nil {
		return fmt.Errorf("staged backup failed verification: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: startTime.UTC(),
		Version:   "1.0.0",
		Databases: databases,
	}
	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	metadataPath := filepath.Join(stagingDir, "metadata.json")
	if err := os.WriteFile(metadataPath, metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to write backup metadata: %w", err)
	}

	archiveName := fmt.Sprintf("vigil-backup-%s.tar.gz", startTime.UTC().Format("20060102-150405"))
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createTarGz(archivePath, stagingDir, append(filenames(databases), "metadata.json")); err != nil {
		return fmt.Errorf("failed to create backup archive: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer archive.Close()

	if err := s.r2.Upload(ctx, backupPrefix+archiveName, archive); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	archiveInfo, _ := os.Stat(archivePath)
	var archiveSize int64
	if archiveInfo != nil {
		archiveSize = archiveInfo.Size()
	}

	s.log.Info().
		Str("archive", archiveName).
		Int("databases", len(databases)).
		Int64("size_bytes", archiveSize).
		Dur("duration", time.Since(startTime)).
		Msg("R2 backup completed")

	return nil
}

// ListBackups returns all stored backups, newest first
func (s *R2BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.r2.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		filename := strings.TrimPrefix(obj.Key, backupPrefix)
		if !strings.HasPrefix(filename, "vigil-backup-") {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: obj.LastModified,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(obj.LastModified).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateBackups deletes backups older than the retention window, always
// keeping at least minBackupsKept regardless of age.
func (s *R2BackupService) RotateBackups(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups for rotation: %w", err)
	}
	if len(backups) <= minBackupsKept {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted := 0
	for i, backup := range backups {
		if i < minBackupsKept || backup.Timestamp.After(cutoff) {
			continue
		}
		if err := s.r2.Delete(ctx, backupPrefix+backup.Filename); err != nil {
			return fmt.Errorf("failed to delete expired backup %s: %w", backup.Filename, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().
			Int("deleted", deleted).
			Int("remaining", len(backups)-deleted).
			Msg("Expired backups rotated")
	}
	return nil
}

// DownloadBackup fetches a backup archive into destDir and returns its path
func (s *R2BackupService) DownloadBackup(ctx context.Context, filename, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	destPath := filepath.Join(destDir, filename)
	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer f.Close()

	n, err := s.r2.Download(ctx, backupPrefix+filename, f)
	if err != nil {
		os.Remove(destPath)
		return "", err
	}

	s.log.Info().Str("archive", filename).Int64("size_bytes", n).Msg("Backup downloaded")
	return destPath, nil
}

// filenames extracts the staged filenames from database metadata
func filenames(databases []DatabaseMetadata) []string {
	names := make([]string, len(databases))
	for i, db := range databases {
		names[i] = db.Filename
	}
	return names
}

// createTarGz packs the named files from dir into a tar.gz archive
func createTarGz(archivePath, dir string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, name := range files {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = name
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	return nil
}
