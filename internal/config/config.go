package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every setting of the server and the CLI.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Pricing  PricingConfig  `toml:"pricing"`
	FX       FXConfig       `toml:"fx"`
	Redis    RedisConfig    `toml:"redis"`
	AI       AIConfig       `toml:"ai"`
	Backup   BackupConfig   `toml:"backup"`
	Log      LogConfig      `toml:"log"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `toml:"-"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	Metrics         bool     `toml:"metrics"`
	CORSOrigin      string   `toml:"cors_origin"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite3 | pgx
	DSN    string `toml:"dsn"`
}

type PricingConfig struct {
	Freshness      duration `toml:"freshness"`
	MaxRetries     int      `toml:"max_retries"`
	BatchRetries   int      `toml:"batch_retries"`
	BackoffStep    duration `toml:"backoff_step"`
	BatchPause     duration `toml:"batch_pause"`
	Schedule       string   `toml:"schedule"`
	URL            string   `toml:"url"`
	UserAgent      string   `toml:"user_agent"`
	RequestTimeout duration `toml:"request_timeout"`
}

type FXConfig struct {
	URL      string `toml:"url"`
	Base     string `toml:"base"`
	Quote    string `toml:"quote"`
	Schedule string `toml:"schedule"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

type AIConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type BackupConfig struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule"`
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Prefix         string `toml:"prefix"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// duration lets TOML values like "30m" decode into a time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Metrics:         true,
			ShutdownTimeout: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "investlog.db",
		},
		Pricing: PricingConfig{
			Freshness:      duration{30 * time.Minute},
			MaxRetries:     1,
			BatchRetries:   0,
			BackoffStep:    duration{2 * time.Second},
			BatchPause:     duration{500 * time.Millisecond},
			Schedule:       "@every 30m",
			RequestTimeout: duration{10 * time.Second},
		},
		FX: FXConfig{
			Base:     "USD",
			Quote:    "CNY",
			Schedule: "@every 6h",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		AI: AIConfig{
			Model: "gemini-1.5-flash",
		},
		Backup: BackupConfig{
			Schedule: "@daily",
			Prefix:   "backups",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var validDrivers = map[string]bool{"sqlite3": true, "pgx": true}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate returns one error listing every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: sqlite3, pgx)", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, "database: dsn must not be empty")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, "server: addr must not be empty")
	}

	if c.Pricing.Freshness.Duration <= 0 {
		errs = append(errs, "pricing: freshness must be positive")
	}
	if c.Pricing.MaxRetries < 0 {
		errs = append(errs, "pricing: max_retries must be >= 0")
	}
	if c.Pricing.BatchRetries < 0 {
		errs = append(errs, "pricing: batch_retries must be >= 0")
	}
	if c.Pricing.BackoffStep.Duration < 0 || c.Pricing.BatchPause.Duration < 0 {
		errs = append(errs, "pricing: backoff_step and batch_pause must not be negative")
	}
	if strings.TrimSpace(c.Pricing.Schedule) == "" {
		errs = append(errs, "pricing: schedule must not be empty")
	}

	if len(c.FX.Base) != 3 || len(c.FX.Quote) != 3 {
		errs = append(errs, fmt.Sprintf("fx: invalid currency pair %s/%s", c.FX.Base, c.FX.Quote))
	}
	if strings.TrimSpace(c.FX.Schedule) == "" {
		errs = append(errs, "fx: schedule must not be empty")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required when enabled")
	}

	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			errs = append(errs, "backup: bucket is required when enabled")
		}
		if c.Backup.Region == "" {
			errs = append(errs, "backup: region is required when enabled")
		}
		if strings.TrimSpace(c.Backup.Schedule) == "" {
			errs = append(errs, "backup: schedule must not be empty")
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}
