package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("QUBO_DATA_DIR", tmpDir)
	t.Setenv("QUBO_PORT", "")
	t.Setenv("QUBO_MAX_ASSETS", "")
	t.Setenv("QUBO_SCHEDULE", "")
	t.Setenv("QUBO_ARCHIVE_BUCKET", "")
	t.Setenv("QUBO_BACKUP_RETENTION_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 25, cfg.MaxAssets)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, int64(123), cfg.MarketSeed)
	assert.Equal(t, 2, cfg.ScheduleBudget)
	assert.InDelta(t, 0.5, cfg.ScheduleRiskFactor, 1e-12)
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, "runs/", cfg.Archive.Prefix)
	assert.Equal(t, "backups/", cfg.Archive.BackupPrefix)
	assert.Equal(t, 30, cfg.Archive.BackupRetentionDays)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("QUBO_DATA_DIR", t.TempDir())
	t.Setenv("QUBO_PORT", "9100")
	t.Setenv("QUBO_MAX_ASSETS", "12")
	t.Setenv("QUBO_WORKERS", "3")
	t.Setenv("QUBO_SCHEDULE", "@every 1h")
	t.Setenv("QUBO_SCHEDULE_ASSETS", " AAA, BBB ,,CCC")
	t.Setenv("QUBO_SCHEDULE_BUDGET", "1")
	t.Setenv("QUBO_SCHEDULE_RISK", "0.25")
	t.Setenv("QUBO_MARKET_SEED", "7")
	t.Setenv("QUBO_ARCHIVE_BUCKET", "qubo-runs")
	t.Setenv("QUBO_BACKUP_RETENTION_DAYS", "7")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 12, cfg.MaxAssets)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, cfg.ScheduleAssets)
	assert.Equal(t, 1, cfg.ScheduleBudget)
	assert.InDelta(t, 0.25, cfg.ScheduleRiskFactor, 1e-12)
	assert.Equal(t, int64(7), cfg.MarketSeed)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, 7, cfg.Archive.BackupRetentionDays)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("QUBO_DATA_DIR", t.TempDir())
	t.Setenv("QUBO_PORT", "not-a-port")
	t.Setenv("QUBO_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 8090, MaxAssets: 20, Archive: &ArchiveConfig{}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port zero", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"max assets too large", func(c *Config) { c.MaxAssets = HardMaxAssets + 1 }, "max assets"},
		{"max assets zero", func(c *Config) { c.MaxAssets = 0 }, "max assets"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
		{"schedule without assets", func(c *Config) { c.Schedule = "@hourly" }, "QUBO_SCHEDULE_ASSETS"},
		{"schedule budget too large", func(c *Config) {
			c.Schedule = "@hourly"
			c.ScheduleAssets = []string{"A", "B"}
			c.ScheduleBudget = 3
			c.ScheduleRiskFactor = 0.5
		}, "budget"},
		{"schedule risk factor", func(c *Config) {
			c.Schedule = "@hourly"
			c.ScheduleAssets = []string{"A", "B"}
			c.ScheduleBudget = 1
		}, "risk factor"},
		{"archive half credentials", func(c *Config) {
			c.Archive = &ArchiveConfig{Bucket: "b", AccessKey: "key"}
		}, "access key"},
		{"negative backup retention", func(c *Config) {
			c.Archive = &ArchiveConfig{Bucket: "b", BackupRetentionDays: -1}
		}, "backup retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
