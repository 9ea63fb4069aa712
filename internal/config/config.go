// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases (defaults to "./data", always absolute)
	Host           string
	Port           int
	LogLevel       string
	DevMode        bool
	AllowedOrigins []string

	QuoteCacheMinutes     int     // Quote cache TTL in minutes
	HistoryLookbackDays   int     // Default lookback window for price history
	DefaultConfidence     float64 // Default VaR/CVaR confidence level
	SnapshotRetentionDays int     // How long portfolio value snapshots are kept

	Simulation *SimulationConfig
	Backup     *BackupConfig
}

// SimulationConfig holds Monte Carlo simulation defaults
type SimulationConfig struct {
	PortfolioHorizonDays int
	PortfolioPaths       int
	AssetHorizonDays     int
	AssetPaths           int
	Seed                 uint64
}

// BackupConfig holds cloud backup configuration (Cloudflare R2 via S3 API)
type BackupConfig struct {
	Enabled           bool
	RetentionDays     int
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

// Configured reports whether all R2 credentials are present
func (b *BackupConfig) Configured() bool {
	return b.R2AccountID != "" && b.R2AccessKeyID != "" &&
		b.R2SecretAccessKey != "" && b.R2BucketName != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check VIGIL_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("VIGIL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:               absDataDir,
		Host:                  getEnv("VIGIL_HOST", "0.0.0.0"),
		Port:                  getEnvAsInt("VIGIL_PORT", 8090),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		AllowedOrigins:        getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		QuoteCacheMinutes:     getEnvAsInt("QUOTE_CACHE_MINUTES", 15),
		HistoryLookbackDays:   getEnvAsInt("HISTORY_LOOKBACK_DAYS", 365),
		DefaultConfidence:     getEnvAsFloat("DEFAULT_CONFIDENCE", 0.95),
		SnapshotRetentionDays: getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 1825),
		Simulation:            loadSimulationConfig(),
		Backup:                loadBackupConfig(),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DefaultConfidence <= 0 || c.DefaultConfidence >= 1 {
		return fmt.Errorf("default confidence must be in (0, 1), got %g", c.DefaultConfidence)
	}
	if c.HistoryLookbackDays < 2 {
		return fmt.Errorf("history lookback must be at least 2 days, got %d", c.HistoryLookbackDays)
	}
	if c.Simulation.PortfolioPaths < 1 || c.Simulation.AssetPaths < 1 {
		return fmt.Errorf("simulation path counts must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// loadSimulationConfig loads Monte Carlo defaults with env overrides
func loadSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		PortfolioHorizonDays: getEnvAsInt("SIM_PORTFOLIO_HORIZON_DAYS", 30),
		PortfolioPaths:       getEnvAsInt("SIM_PORTFOLIO_PATHS", 10000),
		AssetHorizonDays:     getEnvAsInt("SIM_ASSET_HORIZON_DAYS", 14),
		AssetPaths:           getEnvAsInt("SIM_ASSET_PATHS", 500),
		Seed:                 uint64(getEnvAsInt("SIM_SEED", 42)),
	}
}

// loadBackupConfig loads R2 backup configuration from environment
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:           getEnvAsBool("BACKUP_ENABLED", false),
		RetentionDays:     getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
	}
}
