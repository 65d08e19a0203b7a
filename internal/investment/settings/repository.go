package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
)

type Repository interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

type repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, investErrors.NewStorageError("get config", err)
	}
	return json.RawMessage(value), true, nil
}

func (r *repository) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, investErrors.NewStorageError("list config", err)
	}
	defer rows.Close()

	values := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, investErrors.NewStorageError("scan config", err)
		}
		values[key] = json.RawMessage(value)
	}
	return values, investErrors.NewStorageError("list config", rows.Err())
}

func (r *repository) Set(ctx context.Context, key string, value json.RawMessage) error {
	query := `
		INSERT INTO config (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, key, string(value), r.now().UTC())
	return investErrors.NewStorageError("set config", err)
}
