// Command aggregate performs exactly one aggregation run and exits. It is meant to be driven
// by an external scheduler such as cron.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/baxromumarov/job-aggregator/internal/config"
	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/engine"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/observability"
	"github.com/baxromumarov/job-aggregator/internal/sources"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, cfgErr := config.Load()

	csvPath := flag.String("csv", "", "Append the batch to this CSV file instead of Postgres (- for stdout)")
	sourcesFile := flag.String("sources", cfg.SourcesFile, "Source registry JSON (empty = built-in list)")
	dbURL := flag.String("db", cfg.DatabaseURL, "Database URL")
	migrate := flag.Bool("migrate", true, "Apply the schema before writing")
	flag.Parse()

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Error("failed to load config", "error", cfgErr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink core.Sink
	switch *csvPath {
	case "-":
		sink = store.NewWriterSink(os.Stdout)
	case "":
		dbStore, err := store.NewStore(*dbURL)
		if err != nil {
			logger.Error("failed to connect to store", "error", err)
			return 1
		}
		defer dbStore.Close()
		if *migrate {
			if err := dbStore.RunMigrations(ctx, ""); err != nil {
				logger.Error("failed to run migrations", "error", err)
				return 1
			}
		}
		sink = dbStore
	default:
		sink = store.NewCSVSink(*csvPath)
	}

	specs, err := sources.Load(*sourcesFile)
	if err != nil {
		logger.Error("failed to load sources", "error", err)
		return 2
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
		return 2
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
		return 2
	}

	aggregator := core.NewAggregator(eng, registry, sink, core.NewStamper(nil), logger.With("component", "aggregator"))

	batch, err := aggregator.RunBatch(ctx)
	if err != nil {
		var sinkErr *core.SinkError
		switch {
		case errors.As(err, &sinkErr):
			logger.Error("batch was not persisted", "records", sinkErr.Records, "error", sinkErr.Err)
		default:
			logger.Error("run aborted", "error", err)
		}
		return 1
	}

	stats := observability.Snapshot()
	logger.Info("run complete",
		"records", batch.Len(),
		"scrape_date", batch.ScrapeDate(),
		"adapters_failed", stats.AdaptersFailed,
		"adapters_empty", stats.AdaptersEmpty,
	)
	return 0
}
