package pricecache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

// SQLStore keeps prices in the price_cache table. Timestamps are Unix nanoseconds.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, symbol string) (*models.PriceEntry, error) {
	var (
		entry models.PriceEntry
		ts    int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT symbol, price, updated_at FROM price_cache WHERE symbol = $1`, symbol).
		Scan(&entry.Symbol, &entry.Price, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, investErrors.NewStorageError("get price", err)
	}
	entry.UpdatedAt = time.Unix(0, ts).UTC()
	return &entry, nil
}

func (s *SQLStore) Put(ctx context.Context, entry models.PriceEntry) error {
	query := `
		INSERT INTO price_cache (symbol, price, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET price = excluded.price, updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, entry.Symbol, entry.Price, entry.UpdatedAt.UnixNano())
	return investErrors.NewStorageError("put price", err)
}

func (s *SQLStore) List(ctx context.Context) ([]models.PriceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, price, updated_at FROM price_cache ORDER BY symbol`)
	if err != nil {
		return nil, investErrors.NewStorageError("list prices", err)
	}
	defer rows.Close()

	var entries []models.PriceEntry
	for rows.Next() {
		var (
			entry models.PriceEntry
			ts    int64
		)
		if err := rows.Scan(&entry.Symbol, &entry.Price, &ts); err != nil {
			return nil, investErrors.NewStorageError("scan price", err)
		}
		entry.UpdatedAt = time.Unix(0, ts).UTC()
		entries = append(entries, entry)
	}
	return entries, investErrors.NewStorageError("list prices", rows.Err())
}

func (s *SQLStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM price_cache`)
	return investErrors.NewStorageError("reset prices", err)
}
