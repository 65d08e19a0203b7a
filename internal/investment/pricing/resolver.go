// Package pricing resolves current prices for symbols, serving fresh cache
// entries without touching the upstream source.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/pricecache"
	"github.com/sebuszqo/InvestLog/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultFreshness  = 30 * time.Minute
	DefaultBatchPause = 500 * time.Millisecond
	// DefaultLookupTimeout bounds one shared resolution, retries included.
	DefaultLookupTimeout = 2 * time.Minute

	outcomeCached  = "cached"
	outcomeFetched = "fetched"
	outcomeFailed  = "failed"
)

// Observer is told about prices written by the resolver.
type Observer interface {
	PriceResolved(entry models.PriceEntry)
	BatchResolved(results map[string]BatchResult)
}

type Config struct {
	Freshness  time.Duration
	BatchPause time.Duration
	// LookupTimeout bounds a shared resolution, which outlives any single
	// caller's context.
	LookupTimeout time.Duration
	Policy        RetryPolicy
	Metrics       *metrics.Metrics
	Observer      Observer
}

type Options struct {
	ForceRefresh bool
	// MaxRetries overrides the policy default when set.
	MaxRetries *int
}

func Retries(n int) *int { return &n }

type Result struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Cached    bool      `json:"cached"`
	UpdatedAt time.Time `json:"lastUpdate"`
	Attempts  int       `json:"attempts"`
}

// BatchResult is the outcome for one symbol of a batch. Exactly one of Price
// and Error is set. StalePrice carries the last known price when resolution
// failed; it is never reported as Price.
type BatchResult struct {
	Price      *float64   `json:"price"`
	Cached     bool       `json:"cached"`
	UpdatedAt  *time.Time `json:"lastUpdate,omitempty"`
	Error      string     `json:"error,omitempty"`
	StalePrice *float64   `json:"stalePrice,omitempty"`
	StaleAt    *time.Time `json:"staleAt,omitempty"`

	err error
}

// Err returns the resolution error, nil on success.
func (b BatchResult) Err() error { return b.err }

type Resolver struct {
	cache  *pricecache.Cache
	source marketdata.PriceSource
	cfg    Config
	group  singleflight.Group
	log    zerolog.Logger
}

func NewResolver(cache *pricecache.Cache, source marketdata.PriceSource, cfg Config, log zerolog.Logger) *Resolver {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	cfg.Policy = cfg.Policy.withDefaults()
	return &Resolver{
		cache:  cache,
		source: source,
		cfg:    cfg,
		log:    log.With().Str("component", "pricing").Logger(),
	}
}

func (r *Resolver) Freshness() time.Duration { return r.cfg.Freshness }

// fresh returns the cached entry when it is younger than the freshness window.
func (r *Resolver) fresh(ctx context.Context, symbol string) (*models.PriceEntry, error) {
	entry, err := r.cache.Lookup(ctx, symbol)
	if err != nil || entry == nil {
		return nil, err
	}
	if r.cache.Age(*entry) >= r.cfg.Freshness {
		return nil, nil
	}
	return entry, nil
}

// ResolvePrice returns a price for symbol. A cache entry younger than the
// freshness window is returned without any external call unless
// opts.ForceRefresh is set. Otherwise up to MaxRetries+1 lookups are made and
// the first success is written to the cache. Concurrent callers for the same
// symbol share one resolution.
func (r *Resolver) ResolvePrice(ctx context.Context, symbol string, opts Options) (Result, error) {
	symbol = models.CanonicalSymbol(symbol)
	if symbol == "" {
		return Result{}, investErrors.NewValidationError("Symbol is required")
	}

	retries := r.cfg.Policy.MaxRetries
	if opts.MaxRetries != nil {
		retries = *opts.MaxRetries
	}
	if retries < 0 {
		return Result{}, investErrors.NewValidationError("Retries must be zero or greater")
	}

	start := time.Now()
	if !opts.ForceRefresh {
		entry, err := r.fresh(ctx, symbol)
		if err != nil {
			return Result{}, err
		}
		if entry != nil {
			r.cfg.Metrics.ObserveLookup(outcomeCached, time.Since(start))
			return Result{Symbol: symbol, Price: entry.Price, Cached: true, UpdatedAt: entry.UpdatedAt}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	key := symbol
	if opts.ForceRefresh {
		key = "force:" + symbol
	}
	// Shared flights outlive the caller that started them.
	flight := r.group.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.LookupTimeout)
		defer cancel()
		return r.resolve(flightCtx, symbol, retries, opts.ForceRefresh)
	})

	var out singleflight.Result
	select {
	case <-ctx.Done():
		r.cfg.Metrics.ObserveLookup(outcomeFailed, time.Since(start))
		return Result{}, ctx.Err()
	case out = <-flight:
	}
	if out.Err != nil {
		r.cfg.Metrics.ObserveLookup(outcomeFailed, time.Since(start))
		return Result{}, out.Err
	}
	res := out.Val.(Result)
	if res.Cached {
		r.cfg.Metrics.ObserveLookup(outcomeCached, time.Since(start))
	} else {
		r.cfg.Metrics.ObserveLookup(outcomeFetched, time.Since(start))
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, symbol string, retries int, force bool) (Result, error) {
	if !force {
		// another flight may have written the entry since the caller looked
		entry, err := r.fresh(ctx, symbol)
		if err != nil {
			return Result{}, err
		}
		if entry != nil {
			return Result{Symbol: symbol, Price: entry.Price, Cached: true, UpdatedAt: entry.UpdatedAt}, nil
		}
	}

	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := r.cfg.Policy.Backoff(attempt)
			if err := r.cfg.Policy.Sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts++
		r.cfg.Metrics.IncAttempt()
		quote, err := r.source.FetchQuote(ctx, symbol)
		if err == nil && quote.Price <= 0 {
			err = fmt.Errorf("non-positive price %v", quote.Price)
		}
		if err != nil {
			lastErr = err
			r.log.Debug().Err(err).Str("symbol", symbol).Int("attempt", attempts).Msg("price lookup failed")
			continue
		}

		entry, err := r.cache.Record(ctx, symbol, quote.Price)
		if err != nil {
			return Result{}, err
		}
		if r.cfg.Observer != nil {
			r.cfg.Observer.PriceResolved(entry)
		}
		return Result{Symbol: symbol, Price: entry.Price, UpdatedAt: entry.UpdatedAt, Attempts: attempts}, nil
	}

	r.log.Warn().Err(lastErr).Str("symbol", symbol).Int("attempts", attempts).Msg("price unavailable")
	return Result{}, &investErrors.PriceUnavailableError{Symbol: symbol, Attempts: attempts, Err: lastErr}
}

// ResolvePrices resolves symbols one after another, pausing between
// consecutive upstream lookups. A failing symbol never stops the others.
// Results are keyed by canonical symbol; duplicates and blanks are skipped.
func (r *Resolver) ResolvePrices(ctx context.Context, symbols []string, force bool) map[string]BatchResult {
	results := make(map[string]BatchResult, len(symbols))
	retries := r.cfg.Policy.BatchRetries
	pauseNext := false

	for _, raw := range symbols {
		symbol := models.CanonicalSymbol(raw)
		if symbol == "" {
			continue
		}
		if _, done := results[symbol]; done {
			continue
		}

		if pauseNext && r.cfg.BatchPause > 0 {
			if err := r.cfg.Policy.Sleep(ctx, r.cfg.BatchPause); err != nil {
				results[symbol] = r.failure(ctx, symbol, err)
				continue
			}
		}

		res, err := r.ResolvePrice(ctx, symbol, Options{ForceRefresh: force, MaxRetries: Retries(retries)})
		if err != nil {
			results[symbol] = r.failure(ctx, symbol, err)
			pauseNext = !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			continue
		}

		price, updatedAt := res.Price, res.UpdatedAt
		results[symbol] = BatchResult{Price: &price, Cached: res.Cached, UpdatedAt: &updatedAt}
		pauseNext = !res.Cached
	}

	r.cfg.Metrics.SetBatchSize(len(results))
	if r.cfg.Observer != nil {
		r.cfg.Observer.BatchResolved(results)
	}
	return results
}

// failure records err and, when one exists, the last known price of symbol.
func (r *Resolver) failure(ctx context.Context, symbol string, err error) BatchResult {
	res := BatchResult{Error: err.Error(), err: err}
	if ctx.Err() != nil {
		return res
	}
	entry, lookupErr := r.cache.Lookup(ctx, symbol)
	if lookupErr == nil && entry != nil {
		price, at := entry.Price, entry.UpdatedAt
		res.StalePrice = &price
		res.StaleAt = &at
	}
	return res
}

// SymbolLister lists the symbols currently held.
type SymbolLister interface {
	HeldSymbols(ctx context.Context) ([]string, error)
}

// RefreshHeld resolves every held symbol in one batch.
func (r *Resolver) RefreshHeld(ctx context.Context, lister SymbolLister, force bool) (map[string]BatchResult, error) {
	symbols, err := lister.HeldSymbols(ctx)
	if err != nil {
		return nil, err
	}
	results := r.ResolvePrices(ctx, symbols, force)

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
		}
	}
	r.log.Info().Int("symbols", len(results)).Int("failed", failed).Bool("force", force).Msg("price refresh finished")
	return results, nil
}
