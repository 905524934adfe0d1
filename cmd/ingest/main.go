// Command ingest runs one reconciliation + all-timeframe backfill
// pass against the exchange, then exits — or, with -loop, repeats on
// cfg.Ingest.LoopInterval, a native-concurrency generalization of the
// distilled spec's single-shot script.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartchart-ingest/config"
	"smartchart-ingest/internal/bybit"
	"smartchart-ingest/internal/database"
	"smartchart-ingest/internal/ingest"
	"smartchart-ingest/internal/logging"
	"smartchart-ingest/internal/ratelimit"
	"smartchart-ingest/internal/reconcile"
)

func main() {
	loop := flag.Bool("loop", false, "repeat the ingestion pass on the configured interval instead of exiting after one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.Logging.Level,
		Output:      cfg.Logging.Output,
		JSONFormat:  cfg.Logging.JSONFormat,
		IncludeFile: cfg.Logging.IncludeFile,
		Component:   "ingest",
	})
	logging.SetDefault(logger)

	db, err := database.NewDB(database.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		Database:              cfg.Database.Database,
		SSLMode:               cfg.Database.SSLMode,
		MaxConcurrentRequests: cfg.Ingest.MaxConcurrentRequests,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	repo := database.NewRepository(db, cfg.Ingest.MaxRetries, cfg.Ingest.RetryDelay)

	limiter := ratelimit.New(cfg.Ingest.RequestsPerSecond)
	defer limiter.Stop()

	client := bybit.NewClient(bybit.Config{
		BaseURL:    cfg.Bybit.BaseURL,
		Category:   cfg.Bybit.Category,
		MaxRetries: cfg.Ingest.MaxRetries,
		RetryDelay: cfg.Ingest.RetryDelay,
		Breaker: bybit.BreakerConfig{
			Enabled:          cfg.CircuitBreaker.Enabled,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			CooldownDuration: cfg.CircuitBreaker.CooldownDuration,
		},
	}, limiter, logger)

	reconciler := reconcile.New(client, repo, logger)
	pipeline := ingest.New(client, repo, logger, ingest.Config{
		MaxConcurrentRequests: cfg.Ingest.MaxConcurrentRequests,
		DefaultStartTimestamp: cfg.Ingest.DefaultStartTimestamp,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, cancelling in-flight pass")
		cancel()
	}()

	if err := runOnce(ctx, logger, reconciler, pipeline, repo); err != nil {
		logger.Fatal("ingestion pass failed", "error", err)
	}

	if !*loop || cfg.Ingest.LoopInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Ingest.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := runOnce(ctx, logger, reconciler, pipeline, repo); err != nil {
				logger.Error("ingestion pass failed", "error", err)
			}
		}
	}
}

func runOnce(ctx context.Context, logger *logging.Logger, reconciler *reconcile.Reconciler, pipeline *ingest.Pipeline, repo *database.Repository) error {
	start := time.Now()
	logger.Info("starting ingestion pass")

	if err := reconciler.Run(ctx); err != nil {
		return err
	}

	symbols, err := repo.ListSymbols(ctx)
	if err != nil {
		return err
	}

	if err := pipeline.RunAll(ctx, symbols); err != nil {
		return err
	}

	logger.Info("ingestion pass complete", "duration", time.Since(start))
	return nil
}
