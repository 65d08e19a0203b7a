package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	database "github.com/sebuszqo/InvestLog/db"
	"github.com/sebuszqo/InvestLog/internal/backup"
	"github.com/sebuszqo/InvestLog/internal/config"
	investments "github.com/sebuszqo/InvestLog/internal/investment"
	"github.com/sebuszqo/InvestLog/internal/investment/csvio"
	"github.com/sebuszqo/InvestLog/internal/investment/marketdata"
	"github.com/sebuszqo/InvestLog/internal/investment/position"
	"github.com/sebuszqo/InvestLog/internal/investment/pricecache"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/sebuszqo/InvestLog/internal/investment/receipt"
	"github.com/sebuszqo/InvestLog/internal/investment/settings"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
	"github.com/sebuszqo/InvestLog/internal/logger"
	"github.com/sebuszqo/InvestLog/internal/metrics"
	"github.com/sebuszqo/InvestLog/internal/scheduler"
	"github.com/sebuszqo/InvestLog/internal/stream"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the hijacker for websockets.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(next http.Handler, log zerolog.Logger, m *metrics.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		took := time.Since(start)
		m.ObserveHTTP(r.Method, strconv.Itoa(rec.status), took)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", took).
			Msg("request completed")
	})
}

func corsMiddleware(next http.Handler, origin string) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string, errors ...[]string) {
	payload := map[string]interface{}{
		"success": false,
		"message": message,
	}

	if len(errors) > 0 && len(errors[0]) > 0 {
		payload["errors"] = errors[0]
	}

	respondJSON(w, status, payload)
}

type Server struct {
	router             http.Handler
	investmentsHandler *investments.InvestmentHandler
	hub                *stream.Hub
	metrics            *metrics.Metrics
	exposeMetrics      bool
}

func NewServer(investmentHandler *investments.InvestmentHandler, hub *stream.Hub, m *metrics.Metrics, exposeMetrics bool) *Server {
	return &Server{
		investmentsHandler: investmentHandler,
		hub:                hub,
		metrics:            m,
		exposeMetrics:      exposeMetrics,
		router:             http.NewServeMux(),
	}
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusNotFound, Response{Success: false, Message: "Path not found"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) RegisterRoutes() {
	apiRoutes := http.NewServeMux()
	s.investmentsHandler.RegisterRoutes(apiRoutes)
	apiRoutes.Handle("GET /api/ready", http.HandlerFunc(s.handleReady))
	if s.hub != nil {
		apiRoutes.Handle("GET /api/ws", http.HandlerFunc(s.hub.HandleWS))
	}

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/api/", apiRoutes)
	if s.exposeMetrics {
		mainRouter.Handle("GET /metrics", s.metrics.Handler())
	}
	mainRouter.Handle("/", http.HandlerFunc(notFoundHandler))

	s.router = mainRouter
}

// setup loads and validates the configuration and builds the logger from it.
func setup(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	for _, warning := range cfg.Warnings {
		log.Warn().Msg(warning)
	}
	if err := cfg.Validate(); err != nil {
		return nil, log, err
	}
	return cfg, log, nil
}

func main() {
	configPath := flag.String("config", "investlog.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, log, err := setup(*configPath)
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("missing configuration, update to start server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbService, err := database.NewDBService(cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize database")
	}
	defer dbService.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	transactionRepo := transactions.NewTransactionRepository(dbService.DB)
	transactionService := transactions.NewTransactionService(transactionRepo)
	settingsService := settings.NewService(settings.NewRepository(dbService.DB))

	var priceStore pricecache.Store = pricecache.NewSQLStore(dbService.DB)
	var bus stream.Bus
	if cfg.Redis.Enabled {
		redisStore, err := pricecache.NewRedisStore(ctx, pricecache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to redis")
		}
		defer redisStore.Client().Close()
		priceStore = redisStore
		bus = stream.NewRedisBus(redisStore.Client(), cfg.Redis.Channel)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis price cache")
	}
	priceCache := pricecache.New(priceStore)

	hub := stream.NewHub(bus, appMetrics, log)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("live update hub stopped")
		}
	}()

	policy := pricing.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Pricing.MaxRetries
	policy.BatchRetries = cfg.Pricing.BatchRetries
	policy.Backoff = pricing.LinearBackoff(cfg.Pricing.BackoffStep.Duration)

	priceSource := marketdata.NewYahooClient(cfg.Pricing.URL, cfg.Pricing.UserAgent, cfg.Pricing.RequestTimeout.Duration)
	resolver := pricing.NewResolver(priceCache, priceSource, pricing.Config{
		Freshness:  cfg.Pricing.Freshness.Duration,
		BatchPause: cfg.Pricing.BatchPause.Duration,
		Policy:     policy,
		Metrics:    appMetrics,
		Observer:   hub,
	}, log)

	fxService := marketdata.NewFXService(
		marketdata.NewFXClient(cfg.FX.URL, cfg.Pricing.RequestTimeout.Duration),
		settingsService, cfg.FX.Base, cfg.FX.Quote, log)

	importer := csvio.NewImporter(transactionService, log)
	receiptService := receipt.NewService(settingsService, settings.AIConfig{
		Provider: "gemini",
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
	}, transactionService, receipt.GeminiFactory, log)

	investmentsHandler := investments.NewInvestmentHandler(investments.Dependencies{
		Transactions: transactionService,
		Positions:    position.NewService(transactionService, priceCache),
		Settings:     settingsService,
		Resolver:     resolver,
		Importer:     importer,
		FX:           fxService,
		Receipts:     receiptService,
		Health:       dbService.Health,
	}, log, respondJSON, respondError)

	server := NewServer(investmentsHandler, hub, appMetrics, cfg.Server.Metrics)
	server.RegisterRoutes()

	sched := scheduler.New(5*time.Minute, log)
	if err := sched.Add(scheduler.JobPriceRefresh, cfg.Pricing.Schedule, scheduler.PriceRefresh(resolver, transactionService)); err != nil {
		log.Fatal().Err(err).Msg("scheduler didn't start, stopping the app")
	}
	if err := sched.Add(scheduler.JobFXRefresh, cfg.FX.Schedule, scheduler.FXRefresh(fxService)); err != nil {
		log.Fatal().Err(err).Msg("scheduler didn't start, stopping the app")
	}
	if cfg.Backup.Enabled {
		uploader, err := backup.NewS3Uploader(ctx, backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			Bucket:    cfg.Backup.Bucket,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
			PathStyle: cfg.Backup.ForcePathStyle,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("could not configure backups")
		}
		if err := uploader.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("backup bucket not reachable yet")
		}
		job := backup.NewJob(importer, uploader, cfg.Backup.Prefix, appMetrics, log)
		if err := sched.Add(scheduler.JobBackup, cfg.Backup.Schedule, scheduler.Backup(job)); err != nil {
			log.Fatal().Err(err).Msg("scheduler didn't start, stopping the app")
		}
	}
	sched.Start()
	defer sched.Stop()

	// the stored rate may predate a restart by days
	go func() {
		_ = sched.RunNow(scheduler.JobFXRefresh)
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           corsMiddleware(loggingMiddleware(server.router, log, appMetrics), cfg.Server.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
