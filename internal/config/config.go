// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DateLayout is the calendar date format used for the simulated clock.
const DateLayout = "2006-01-02"

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool
	DBDriver string // "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo)

	// ClockStartDate seeds the simulated clock the first time the ledger is created
	ClockStartDate time.Time
	// ClockAutoAdvanceSchedule is a cron spec; when set the server advances the clock one day per tick
	ClockAutoAdvanceSchedule string

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup configuration
type BackupConfig struct {
	Endpoint        string // Custom endpoint (R2, MinIO); empty uses AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // cron spec
	RetentionDays   int
}

// Enabled reports whether enough settings are present to run backups
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TIERLEDGER_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	startDate, err := time.Parse(DateLayout, getEnv("CLOCK_START_DATE", "2025-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOCK_START_DATE (expected YYYY-MM-DD): %w", err)
	}

	cfg := &Config{
		DataDir:                  absDataDir,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		Port:                     getEnvAsInt("PORT", 8080),
		DevMode:                  getEnvAsBool("DEV_MODE", false),
		DBDriver:                 getEnv("DB_DRIVER", "sqlite"),
		ClockStartDate:           startDate.UTC(),
		ClockAutoAdvanceSchedule: getEnv("CLOCK_AUTO_ADVANCE_SCHEDULE", ""),
		Backup:                   loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected sqlite or sqlite3)", c.DBDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
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
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Schedule:        getEnv("BACKUP_SCHEDULE", "@daily"),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 90),
	}
}
