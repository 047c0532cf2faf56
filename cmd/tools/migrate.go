package main

import (
	"context"
	"flag"
	"os"

	"github.com/baxromumarov/job-aggregator/internal/config"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

func main() {
	cfg, _ := config.Load()

	dbURL := flag.String("db", cfg.DatabaseURL, "Database URL")
	schema := flag.String("schema", "", "Path to schema file (empty = built-in schema)")
	flag.Parse()

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	db, err := store.NewStore(*dbURL)
	if err != nil {
		logger.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background(), *schema); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	logger.Info("migrations executed successfully")
}
