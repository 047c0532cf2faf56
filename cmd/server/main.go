package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/api"
	"github.com/baxromumarov/job-aggregator/internal/config"
	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/engine"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/shutdown"
	"github.com/baxromumarov/job-aggregator/internal/sources"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dbStore, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer dbStore.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbStore.RunMigrations(ctx, ""); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	specs, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		logger.Error("failed to load sources", "error", err)
		os.Exit(1)
	}
	registry, err := sources.Build(specs, sources.Deps{
		Client:  httpx.NewClient(cfg.UserAgent),
		Fetcher: httpx.NewCollyFetcher(cfg.UserAgent),
		Adzuna: sources.AdzunaCredentials{
			AppID:   cfg.Adzuna.AppID,
			AppKey:  cfg.Adzuna.AppKey,
			Country: cfg.Adzuna.Country,
		},
		Log: logger,
	})
	if err != nil {
		logger.Error("invalid source registry", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(engine.Config{
		LightWorkers: cfg.LightWorkers,
		HeavyWorkers: cfg.HeavyWorkers,
		Timeout:      cfg.AdapterTimeout,
		Retry: engine.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	}, logger.With("component", "engine"))
	if err != nil {
		logger.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}

	aggregator := core.NewAggregator(eng, registry, dbStore, core.NewStamper(nil), logger.With("component", "aggregator"))

	if cfg.RunInterval > 0 {
		core.NewScheduler(aggregator, cfg.RunInterval, logger.With("component", "scheduler")).Start(ctx)
	} else {
		logger.Info("scheduler disabled, runs are triggered over http")
	}

	srv := api.NewServer(ctx, dbStore, aggregator, logger.With("component", "api"))
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stopSignals()

	stopped := shutdown.Watch(sigCtx, 15*time.Second, logger,
		httpSrv,
		shutdown.Func(func(context.Context) error {
			cancel()
			return nil
		}),
	)

	logger.Info("starting server", "port", cfg.Port, "adapters", registry.Len())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped
	logger.Info("server stopped")
}
