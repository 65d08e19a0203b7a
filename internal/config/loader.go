package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (optional) over Defaults, then applies
// .env and INVESTLOG_* overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			cfg.Warnings = append(cfg.Warnings, "config file "+path+" not found, using defaults")
		}
	}

	if err := godotenv.Load(); err != nil {
		cfg.Warnings = append(cfg.Warnings, "no .env file, continuing with system environment variables")
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Addr, "INVESTLOG_SERVER_ADDR")
	setBool(&cfg.Server.Metrics, "INVESTLOG_SERVER_METRICS")
	setStr(&cfg.Server.CORSOrigin, "INVESTLOG_SERVER_CORS_ORIGIN")
	setDuration(&cfg.Server.ShutdownTimeout, "INVESTLOG_SERVER_SHUTDOWN_TIMEOUT")

	setStr(&cfg.Database.Driver, "INVESTLOG_DATABASE_DRIVER")
	setStr(&cfg.Database.DSN, "INVESTLOG_DATABASE_DSN")

	setDuration(&cfg.Pricing.Freshness, "INVESTLOG_PRICING_FRESHNESS")
	setInt(&cfg.Pricing.MaxRetries, "INVESTLOG_PRICING_MAX_RETRIES")
	setInt(&cfg.Pricing.BatchRetries, "INVESTLOG_PRICING_BATCH_RETRIES")
	setDuration(&cfg.Pricing.BackoffStep, "INVESTLOG_PRICING_BACKOFF_STEP")
	setDuration(&cfg.Pricing.BatchPause, "INVESTLOG_PRICING_BATCH_PAUSE")
	setStr(&cfg.Pricing.Schedule, "INVESTLOG_PRICING_SCHEDULE")
	setStr(&cfg.Pricing.URL, "INVESTLOG_PRICING_URL")
	setStr(&cfg.Pricing.UserAgent, "INVESTLOG_PRICING_USER_AGENT")
	setDuration(&cfg.Pricing.RequestTimeout, "INVESTLOG_PRICING_REQUEST_TIMEOUT")

	setStr(&cfg.FX.URL, "INVESTLOG_FX_URL")
	setStr(&cfg.FX.Base, "INVESTLOG_FX_BASE")
	setStr(&cfg.FX.Quote, "INVESTLOG_FX_QUOTE")
	setStr(&cfg.FX.Schedule, "INVESTLOG_FX_SCHEDULE")

	setBool(&cfg.Redis.Enabled, "INVESTLOG_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "INVESTLOG_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "INVESTLOG_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "INVESTLOG_REDIS_DB")
	setStr(&cfg.Redis.Channel, "INVESTLOG_REDIS_CHANNEL")

	setStr(&cfg.AI.APIKey, "GEMINI_API_KEY")
	setStr(&cfg.AI.APIKey, "INVESTLOG_AI_API_KEY")
	setStr(&cfg.AI.Model, "INVESTLOG_AI_MODEL")

	setBool(&cfg.Backup.Enabled, "INVESTLOG_BACKUP_ENABLED")
	setStr(&cfg.Backup.Schedule, "INVESTLOG_BACKUP_SCHEDULE")
	setStr(&cfg.Backup.Bucket, "INVESTLOG_BACKUP_BUCKET")
	setStr(&cfg.Backup.Region, "INVESTLOG_BACKUP_REGION")
	setStr(&cfg.Backup.Endpoint, "INVESTLOG_BACKUP_ENDPOINT")
	setStr(&cfg.Backup.AccessKey, "INVESTLOG_BACKUP_ACCESS_KEY")
	setStr(&cfg.Backup.SecretKey, "INVESTLOG_BACKUP_SECRET_KEY")
	setStr(&cfg.Backup.Prefix, "INVESTLOG_BACKUP_PREFIX")
	setBool(&cfg.Backup.ForcePathStyle, "INVESTLOG_BACKUP_FORCE_PATH_STYLE")

	setStr(&cfg.Log.Level, "INVESTLOG_LOG_LEVEL")
	setBool(&cfg.Log.Pretty, "INVESTLOG_LOG_PRETTY")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
