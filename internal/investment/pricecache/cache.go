// Package pricecache holds the last known price of every symbol. The Cache
// is the only handle through which prices are written; stores only persist.
package pricecache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

// Store persists price entries keyed by canonical symbol. Get returns nil
// when the symbol has never been priced.
type Store interface {
	Get(ctx context.Context, symbol string) (*models.PriceEntry, error)
	Put(ctx context.Context, entry models.PriceEntry) error
	List(ctx context.Context) ([]models.PriceEntry, error)
	Reset(ctx context.Context) error
}

type Cache struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Now() time.Time {
	return c.now()
}

// Age is the time elapsed since the entry was written.
func (c *Cache) Age(entry models.PriceEntry) time.Duration {
	return c.now().Sub(entry.UpdatedAt)
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (*models.PriceEntry, error) {
	symbol = models.CanonicalSymbol(symbol)
	if symbol == "" {
		return nil, nil
	}
	return c.store.Get(ctx, symbol)
}

// Record writes price for symbol stamped with the current time. A symbol's
// timestamp never moves backwards.
func (c *Cache) Record(ctx context.Context, symbol string, price float64) (models.PriceEntry, error) {
	symbol = models.CanonicalSymbol(symbol)
	if symbol == "" {
		return models.PriceEntry{}, investErrors.NewValidationError("Symbol is required")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return models.PriceEntry{}, investErrors.NewValidationError(fmt.Sprintf("invalid price %v for %s", price, symbol))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := models.PriceEntry{Symbol: symbol, Price: price, UpdatedAt: c.now().UTC()}
	previous, err := c.store.Get(ctx, symbol)
	if err != nil {
		return models.PriceEntry{}, err
	}
	if previous != nil && entry.UpdatedAt.Before(previous.UpdatedAt) {
		entry.UpdatedAt = previous.UpdatedAt
	}

	if err := c.store.Put(ctx, entry); err != nil {
		return models.PriceEntry{}, err
	}
	return entry, nil
}

// Snapshot returns every entry keyed by canonical symbol.
func (c *Cache) Snapshot(ctx context.Context) (map[string]models.PriceEntry, error) {
	entries, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]models.PriceEntry, len(entries))
	for _, e := range entries {
		snapshot[models.CanonicalSymbol(e.Symbol)] = e
	}
	return snapshot, nil
}

func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Reset(ctx)
}
