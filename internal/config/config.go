// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the store file (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Market data provider (Alpha Vantage)
	AlphaVantageAPIKey string
	DailyRequestBudget int // upstream calls allowed per UTC day

	// AI text provider (Perplexity / any OpenAI-compatible endpoint)
	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	// Usage metering collaborator (optional, empty disables reporting)
	MeteringURL string

	Backup *BackupConfig
}

// BackupConfig holds settings for the S3-compatible store backup.
type BackupConfig struct {
	Enabled   bool
	Endpoint  string // S3-compatible endpoint URL (e.g. Cloudflare R2)
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	KeepLast  int // backups retained after pruning
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOCK_AGENT_DATA_DIR", "")
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
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 8010),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		DailyRequestBudget: getEnvAsInt("ALPHA_VANTAGE_DAILY_BUDGET", 25),
		AIAPIKey:           getEnv("PERPLEXITY_API_KEY", ""),
		AIBaseURL:          getEnv("AI_BASE_URL", "https://api.perplexity.ai"),
		AIModel:            getEnv("AI_MODEL", "sonar"),
		MeteringURL:        getEnv("METERING_URL", ""),
		Backup:             loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// Provider keys are optional at startup: adapters answer from cache
	// without them and surface provider errors only on a cold fetch.
	if c.Backup.Enabled {
		if c.Backup.Endpoint == "" || c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but BACKUP_ENDPOINT or BACKUP_BUCKET is missing")
		}
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

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:   getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:  getEnv("BACKUP_ENDPOINT", ""),
		Bucket:    getEnv("BACKUP_BUCKET", ""),
		AccessKey: getEnv("BACKUP_ACCESS_KEY", ""),
		SecretKey: getEnv("BACKUP_SECRET_KEY", ""),
		Region:    getEnv("BACKUP_REGION", "auto"),
		KeepLast:  getEnvAsInt("BACKUP_KEEP_LAST", 8),
	}
}
