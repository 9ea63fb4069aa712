package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VIGIL_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 15, cfg.QuoteCacheMinutes)
	assert.Equal(t, 365, cfg.HistoryLookbackDays)
	assert.Equal(t, 0.95, cfg.DefaultConfidence)
	assert.Equal(t, 1825, cfg.SnapshotRetentionDays)

	require.NotNil(t, cfg.Simulation)
	assert.Equal(t, 30, cfg.Simulation.PortfolioHorizonDays)
	assert.Equal(t, 10000, cfg.Simulation.PortfolioPaths)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)

	require.NotNil(t, cfg.Backup)
	assert.False(t, cfg.Backup.Enabled)
	assert.False(t, cfg.Backup.Configured())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_DATA_DIR", t.TempDir())
	t.Setenv("VIGIL_HOST", "127.0.0.1")
	t.Setenv("VIGIL_PORT", "9999")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEFAULT_CONFIDENCE", "0.99")
	t.Setenv("SIM_PORTFOLIO_PATHS", "2000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 0.99, cfg.DefaultConfidence)
	assert.Equal(t, 2000, cfg.Simulation.PortfolioPaths)
}

func TestLoad_DataDirIsAbsolute(t *testing.T) {
	t.Setenv("VIGIL_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("VIGIL_DATA_DIR", t.TempDir())
	t.Setenv("VIGIL_PORT", "not-a-number")
	t.Setenv("DEV_MODE", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Port)
	assert.False(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                8090,
			DefaultConfidence:   0.95,
			HistoryLookbackDays: 365,
			Simulation:          &SimulationConfig{PortfolioPaths: 1000, AssetPaths: 500},
		}
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.Port = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.DefaultConfidence = 1.0
	assert.Error(t, c.Validate())

	c = valid()
	c.HistoryLookbackDays = 1
	assert.Error(t, c.Validate())

	c = valid()
	c.Simulation.PortfolioPaths = 0
	assert.Error(t, c.Validate())
}

func TestBackupConfig_Configured(t *testing.T) {
	full := &BackupConfig{
		R2AccountID:       "acct",
		R2AccessKeyID:     "key",
		R2SecretAccessKey: "secret",
		R2BucketName:      "bucket",
	}
	assert.True(t, full.Configured())

	partial := &BackupConfig{R2AccountID: "acct"}
	assert.False(t, partial.Configured())
}
