package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Minute, cfg.Pricing.Freshness.Duration)
	assert.Equal(t, 1, cfg.Pricing.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Pricing.BackoffStep.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Pricing.BatchPause.Duration)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "investlog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
driver = "pgx"
dsn = "postgres://localhost/investlog"

[pricing]
freshness = "10m"
max_retries = 3
`), 0o600))

	t.Setenv("INVESTLOG_PRICING_MAX_RETRIES", "2")
	t.Setenv("INVESTLOG_BACKUP_ENABLED", "true")
	t.Setenv("INVESTLOG_BACKUP_BUCKET", "ledger")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Pricing.Freshness.Duration)
	assert.Equal(t, 2, cfg.Pricing.MaxRetries)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "ledger", cfg.Backup.Bucket)
	// untouched sections keep their defaults
	assert.Equal(t, "USD", cfg.FX.Base)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup: region is required")
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pricing\nfreshness = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown driver"},
		{"zero freshness", func(c *Config) { c.Pricing.Freshness.Duration = 0 }, "freshness must be positive"},
		{"negative retries", func(c *Config) { c.Pricing.MaxRetries = -1 }, "max_retries"},
		{"empty schedule", func(c *Config) { c.Pricing.Schedule = " " }, "pricing: schedule"},
		{"bad pair", func(c *Config) { c.FX.Quote = "YUAN" }, "invalid currency pair"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "unknown level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
