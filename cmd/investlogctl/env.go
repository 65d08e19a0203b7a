package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	database "github.com/sebuszqo/InvestLog/db"
	"github.com/sebuszqo/InvestLog/internal/config"
	"github.com/sebuszqo/InvestLog/internal/investment/csvio"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/sebuszqo/InvestLog/internal/investment/pricecache"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/sebuszqo/InvestLog/internal/investment/settings"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
	"github.com/sebuszqo/InvestLog/internal/logger"
)

// env holds the services shared by every subcommand. It is opened on first
// use so that -help and completion never touch the database.
type env struct {
	configPath string

	cfg          *config.Config
	log          zerolog.Logger
	db           *database.DBService
	cache        *pricecache.Cache
	transactions transactions.Service
	importer     *csvio.Importer
	positions    *position.Service
	resolver     *pricing.Resolver
	fx           *marketdata.FXService
	closers      []func() error
}

func (e *env) open(ctx context.Context) error {
	if e.db != nil {
		return nil
	}

	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	e.log = logger.New(cfg.Log.Level, true)

	dbService, err := database.NewDBService(cfg.Database.Driver, cfg.Database.DSN, e.log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	e.db = dbService
	e.closers = append(e.closers, dbService.Close)

	var store pricecache.Store = pricecache.NewSQLStore(dbService.DB)
	if cfg.Redis.Enabled {
		redisStore, err := pricecache.NewRedisStore(ctx, pricecache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		e.closers = append(e.closers, redisStore.Client().Close)
		store = redisStore
	}
	e.cache = pricecache.New(store)

	e.transactions = transactions.NewTransactionService(transactions.NewTransactionRepository(dbService.DB))
	e.importer = csvio.NewImporter(e.transactions, e.log)
	e.positions = position.NewService(e.transactions, e.cache)

	policy := pricing.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Pricing.MaxRetries
	policy.BatchRetries = cfg.Pricing.BatchRetries
	policy.Backoff = pricing.LinearBackoff(cfg.Pricing.BackoffStep.Duration)
	e.resolver = pricing.NewResolver(e.cache,
		marketdata.NewYahooClient(cfg.Pricing.URL, cfg.Pricing.UserAgent, cfg.Pricing.RequestTimeout.Duration),
		pricing.Config{
			Freshness:  cfg.Pricing.Freshness.Duration,
			BatchPause: cfg.Pricing.BatchPause.Duration,
			Policy:     policy,
		}, e.log)

	e.fx = marketdata.NewFXService(
		marketdata.NewFXClient(cfg.FX.URL, cfg.Pricing.RequestTimeout.Duration),
		settings.NewService(settings.NewRepository(dbService.DB)),
		cfg.FX.Base, cfg.FX.Quote, e.log)
	return nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}
