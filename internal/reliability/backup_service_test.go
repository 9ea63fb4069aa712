package reliability

import (
	"archive/tar"
	"compress/gzip"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/vigil/internal/database"
	"github.com/aristath/vigil/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // SQLite driver
)

func TestBackupService_StageBackup(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	t.Run("stages consistent copies with checksums", func(t *testing.T) {
		tempDir := t.TempDir()
		dataDir := filepath.Join(tempDir, "data")
		stagingDir := filepath.Join(tempDir, "staging")
		require.NoError(t, os.MkdirAll(dataDir, 0755))

		portfolioDB, err := database.New(database.Config{
			Path:    filepath.Join(dataDir, "portfolio.db"),
			Profile: database.ProfileStandard,
			Name:    "portfolio",
		})
		require.NoError(t, err)
		defer portfolioDB.Close()

		_, err = portfolioDB.Conn().Exec("CREATE TABLE holdings (id INTEGER PRIMARY KEY, symbol TEXT)")
		require.NoError(t, err)
		_, err = portfolioDB.Conn().Exec("INSERT INTO holdings (symbol) VALUES ('AAPL'), ('MSFT')")
		require.NoError(t, err)

		historyDB, err := database.New(database.Config{
			Path:    filepath.Join(dataDir, "history.db"),
			Profile: database.ProfileArchive,
			Name:    "history",
		})
		require.NoError(t, err)
		defer historyDB.Close()

		svc := NewBackupService(map[string]*database.DB{
			"portfolio": portfolioDB,
			"history":   historyDB,
		}, log)

		metadata, err := svc.StageBackup(stagingDir)
		require.NoError(t, err)
		require.Len(t, metadata, 2)

		// Sorted by database name for stable archive layout.
		assert.Equal(t, "history", metadata[0].Name)
		assert.Equal(t, "portfolio", metadata[1].Name)

		for _, meta := range metadata {
			assert.NotEmpty(t, meta.Checksum)
			assert.Greater(t, meta.SizeBytes, int64(0))
		}

		// Staged copy must be a valid database with the data intact.
		backupDB, err := sql.Open("sqlite", filepath.Join(stagingDir, "portfolio.db"))
		require.NoError(t, err)
		defer backupDB.Close()

		var result string
		require.NoError(t, backupDB.QueryRow("PRAGMA integrity_check").Scan(&result))
		assert.Equal(t, "ok", result)

		var count int
		require.NoError(t, backupDB.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&count))
		assert.Equal(t, 2, count)
	})

	t.Run("overwrites stale staging files", func(t *testing.T) {
		tempDir := t.TempDir()
		stagingDir := filepath.Join(tempDir, "staging")
		require.NoError(t, os.MkdirAll(stagingDir, 0755))

		// Leave a stale file where VACUUM INTO would refuse to write.
		stale := filepath.Join(stagingDir, "portfolio.db")
		require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))

		portfolioDB, err := database.New(database.Config{
			Path:    filepath.Join(tempDir, "portfolio.db"),
			Profile: database.ProfileStandard,
			Name:    "portfolio",
		})
		require.NoError(t, err)
		defer portfolioDB.Close()

		svc := NewBackupService(map[string]*database.DB{"portfolio": portfolioDB}, log)

		metadata, err := svc.StageBackup(stagingDir)
		require.NoError(t, err)
		require.Len(t, metadata, 1)
		assert.NotEqual(t, int64(5), metadata[0].SizeBytes, "stale file should be replaced")
	})
}

func TestBackupService_VerifyStaged(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	setup := func(t *testing.T) (string, []DatabaseMetadata) {
		tempDir := t.TempDir()
		stagingDir := filepath.Join(tempDir, "staging")

		db, err := database.New(database.Config{
			Path:    filepath.Join(tempDir, "portfolio.db"),
			Profile: database.ProfileStandard,
			Name:    "portfolio",
		})
		require.NoError(t, err)
		defer db.Close()

		svc := NewBackupService(map[string]*database.DB{"portfolio": db}, log)
		metadata, err := svc.StageBackup(stagingDir)
		require.NoError(t, err)

		return stagingDir, metadata
	}

	t.Run("passes on untouched staging", func(t *testing.T) {
		stagingDir, metadata := setup(t)
		svc := NewBackupService(nil, log)

		assert.NoError(t, svc.VerifyStaged(stagingDir, metadata))
	})

	t.Run("detects tampered files", func(t *testing.T) {
		stagingDir, metadata := setup(t)
		svc := NewBackupService(nil, log)

		f, err := os.OpenFile(filepath.Join(stagingDir, "portfolio.db"), os.O_WRONLY, 0644)
		require.NoError(t, err)
		_, err = f.WriteAt([]byte{0xFF}, 100)
		require.NoError(t, err)
		f.Close()

		err = svc.VerifyStaged(stagingDir, metadata)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum")
	})

	t.Run("detects missing files", func(t *testing.T) {
		stagingDir, metadata := setup(t)
		svc := NewBackupService(nil, log)

		require.NoError(t, os.Remove(filepath.Join(stagingDir, "portfolio.db")))
		assert.Error(t, svc.VerifyStaged(stagingDir, metadata))
	})
}

func TestCreateTarGz(t *testing.T) {
	tempDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a.db"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b.db"), []byte("bravo"), 0644))

	archivePath := filepath.Join(tempDir, "backup.tar.gz")
	err := createTarGz(archivePath, tempDir, []string{"a.db", "b.db"})
	require.NoError(t, err)

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	tr := tar.NewReader(gz)
	contents := map[string]string{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[header.Name] = string(data)
	}

	assert.Equal(t, map[string]string{"a.db": "alpha", "b.db": "bravo"}, contents)
}

func TestCreateTarGz_MissingFile(t *testing.T) {
	tempDir := t.TempDir()

	archivePath := filepath.Join(tempDir, "backup.tar.gz")
	err := createTarGz(archivePath, tempDir, []string{"missing.db"})
	assert.Error(t, err)
}
