// Command server runs the read-only candle/indicator HTTP API plus
// /metrics, following the teacher's signal.Notify + httpServer.Shutdown
// graceful-shutdown idiom.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartchart-ingest/config"
	"smartchart-ingest/internal/api"
	"smartchart-ingest/internal/cache"
	"smartchart-ingest/internal/database"
	"smartchart-ingest/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.Logging.Level,
		Output:      cfg.Logging.Output,
		JSONFormat:  cfg.Logging.JSONFormat,
		IncludeFile: cfg.Logging.IncludeFile,
		Component:   "server",
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
	indicatorCache := cache.NewIndicatorCache(cfg.Redis, logger)
	defer indicatorCache.Close()

	server := api.NewServer(cfg.Server, repo, indicatorCache, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("read API server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}
