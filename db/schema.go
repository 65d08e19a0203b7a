package database

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		date       TEXT NOT NULL,
		total      REAL NOT NULL,
		price      REAL NOT NULL,
		shares     REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions (symbol)`,
	`CREATE TABLE IF NOT EXISTS config (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS price_cache (
		symbol     TEXT PRIMARY KEY,
		price      REAL NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		date       TEXT NOT NULL,
		total      DOUBLE PRECISION NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		shares     DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions (symbol)`,
	`CREATE TABLE IF NOT EXISTS config (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS price_cache (
		symbol     TEXT PRIMARY KEY,
		price      DOUBLE PRECISION NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}

// Migrate creates the tables when they are missing. It is safe to run on every start.
func (s *DBService) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if s.Driver == DriverPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
