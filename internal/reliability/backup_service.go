// Package reliability provides database backup and cloud replication for
// Vigil's SQLite files.
package reliability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/aristath/vigil/internal/database"
	"github.com/rs/zerolog"
)

// DatabaseMetadata describes a single staged database copy
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupService stages consistent snapshots of the application databases
type BackupService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(databases map[string]*database.DB, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// StageBackup writes a consistent copy of every database into dir and
// returns per-database metadata with sha256 checksums. VACUUM INTO takes
// a transactional snapshot, so writers are never blocked and the copy is
// always consistent regardless of in-flight transactions.
func (s *BackupService) StageBackup(dir string) ([]DatabaseMetadata, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	metadata := make([]DatabaseMetadata, 0, len(names))
	for _, name := range names {
		db := s.databases[name]
		filename := name + ".db"
		dest := filepath.Join(dir, filename)

		// VACUUM INTO refuses to overwrite, so clear any stale copy first.
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to clear stale staging file for %s: %w", name, err)
		}

		if _, err := db.Conn().Exec("VACUUM INTO ?", dest); err != nil {
			return nil, fmt.Errorf("failed to stage database %s: %w", name, err)
		}

		checksum, size, err := fileChecksum(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum staged %s: %w", name, err)
		}

		metadata = append(metadata, DatabaseMetadata{
			Name:      name,
			Filename:  filename,
			SizeBytes: size,
			Checksum:  checksum,
		})

		s.log.Debug().
			Str("database", name).
			Int64("size_bytes", size).
			Msg("Database staged for backup")
	}

	return metadata, nil
}

// VerifyStaged re-checksums staged files against their recorded metadata.
func (s *BackupService) VerifyStaged(dir string, metadata []DatabaseMetadata) error {
	for _, meta := range metadata {
		checksum, size, err := fileChecksum(filepath.Join(dir, meta.Filename))
		if err != nil {
			return fmt.Errorf("failed to verify %s: %w", meta.Name, err)
		}
		if size != meta.SizeBytes {
			return fmt.Errorf("staged %s changed size: recorded %d, found %d", meta.Name, meta.SizeBytes, size)
		}
		if checksum != meta.Checksum {
			return fmt.Errorf("staged %s failed checksum verification", meta.Name)
		}
	}
	return nil
}

// fileChecksum returns the sha256 hex digest and size of a file
func fileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
