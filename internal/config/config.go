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

// HardMaxAssets is the largest universe any configuration may allow.
// 2^30 candidates is already hours of work on a single machine.
const HardMaxAssets = 30

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for all databases (always absolute)
	LogLevel  string
	Port      int
	DevMode   bool
	MaxAssets int // Largest universe accepted by the evaluator
	Workers   int // Evaluator goroutines; 0 = runtime.NumCPU()

	// Scheduled solves (disabled when Schedule is empty)
	Schedule           string
	ScheduleAssets     []string
	ScheduleBudget     int
	ScheduleRiskFactor float64
	MarketSeed         int64

	Archive *ArchiveConfig
}

// ArchiveConfig holds S3 configuration for run archives and database backups
type ArchiveConfig struct {
	Bucket    string // Empty disables archiving and backups
	Prefix    string
	Region    string
	Endpoint  string // Optional S3-compatible endpoint (MinIO, R2, ...)
	AccessKey string // Optional static credentials; default chain otherwise
	SecretKey string

	BackupPrefix        string
	BackupRetentionDays int // 0 keeps every backup
}

// Enabled reports whether runs should be archived.
func (a *ArchiveConfig) Enabled() bool {
	return a != nil && a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUBO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnvAsInt("QUBO_PORT", 8090),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		MaxAssets:          getEnvAsInt("QUBO_MAX_ASSETS", 25),
		Workers:            getEnvAsInt("QUBO_WORKERS", 0),
		Schedule:           getEnv("QUBO_SCHEDULE", ""),
		ScheduleAssets:     splitList(getEnv("QUBO_SCHEDULE_ASSETS", "")),
		ScheduleBudget:     getEnvAsInt("QUBO_SCHEDULE_BUDGET", 2),
		ScheduleRiskFactor: getEnvAsFloat("QUBO_SCHEDULE_RISK", 0.5),
		MarketSeed:         int64(getEnvAsInt("QUBO_MARKET_SEED", 123)),
		Archive: &ArchiveConfig{
			Bucket:    getEnv("QUBO_ARCHIVE_BUCKET", ""),
			Prefix:    getEnv("QUBO_ARCHIVE_PREFIX", "runs/"),
			Region:    getEnv("QUBO_ARCHIVE_REGION", ""),
			Endpoint:  getEnv("QUBO_ARCHIVE_ENDPOINT", ""),
			AccessKey: getEnv("QUBO_ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("QUBO_ARCHIVE_SECRET_KEY", ""),

			BackupPrefix:        getEnv("QUBO_BACKUP_PREFIX", "backups/"),
			BackupRetentionDays: getEnvAsInt("QUBO_BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxAssets < 1 || c.MaxAssets > HardMaxAssets {
		return fmt.Errorf("max assets must be within [1, %d], got %d", HardMaxAssets, c.MaxAssets)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}

	if c.Schedule != "" {
		n := len(c.ScheduleAssets)
		if n == 0 {
			return fmt.Errorf("QUBO_SCHEDULE is set but QUBO_SCHEDULE_ASSETS is empty")
		}
		if n > c.MaxAssets {
			return fmt.Errorf("scheduled universe has %d assets, limit is %d", n, c.MaxAssets)
		}
		if c.ScheduleBudget < 0 || c.ScheduleBudget > n {
			return fmt.Errorf("scheduled budget %d is outside [0, %d]", c.ScheduleBudget, n)
		}
		if c.ScheduleRiskFactor <= 0 {
			return fmt.Errorf("scheduled risk factor must be > 0, got %g", c.ScheduleRiskFactor)
		}
	}

	if c.Archive != nil && c.Archive.Enabled() {
		if (c.Archive.AccessKey == "") != (c.Archive.SecretKey == "") {
			return fmt.Errorf("archive access key and secret key must be set together")
		}
		if c.Archive.BackupRetentionDays < 0 {
			return fmt.Errorf("backup retention cannot be negative, got %d", c.Archive.BackupRetentionDays)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
