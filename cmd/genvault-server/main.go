// Package main provides the genvault HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/config"
	"github.com/raphaelgruber/genvault-go/internal/db"
	"github.com/raphaelgruber/genvault-go/internal/generate"
	"github.com/raphaelgruber/genvault-go/internal/hub"
	"github.com/raphaelgruber/genvault-go/internal/metrics"
	"github.com/raphaelgruber/genvault-go/internal/server"
	"github.com/raphaelgruber/genvault-go/internal/service"
	"github.com/raphaelgruber/genvault-go/internal/store"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("genvault-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"data_dir", cfg.DataDir,
		"provider", cfg.LLMProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the artifact version store
	versions, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open version store", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()

	// Fold legacy timestamped files into version histories before serving
	if cfg.MigrateOnStart {
		start := time.Now()
		result, err := versions.Reconcile()
		collector.RecordTiming(metrics.OpMigrate, time.Since(start))
		if err != nil {
			logger.Error("legacy migration failed", "error", err)
			os.Exit(1)
		}
		if result.GroupsMigrated > 0 || len(result.GroupsSkipped) > 0 {
			logger.Info("legacy migration finished",
				"groups_migrated", result.GroupsMigrated,
				"files_consumed", result.FilesConsumed,
				"groups_skipped", len(result.GroupsSkipped),
			)
		}
	}

	// Connect the durable job mirror when configured
	var dbClient *db.Client
	if cfg.SurrealDBURL != "" {
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("closing database connection")
			_ = dbClient.Close(context.Background())
		}()

		if err := dbClient.InitSchema(ctx); err != nil {
			logger.Error("failed to initialize database schema", "error", err)
			os.Exit(1)
		}

		// Jobs left non-terminal by the previous process cannot resume; mark
		// them failed in the mirror so their final state is inspectable.
		interrupted, err := dbClient.FailInterruptedJobs(ctx, "interrupted by server restart")
		if err != nil {
			logger.Warn("failed to reconcile interrupted jobs", "error", err)
		}
		for _, id := range interrupted {
			logger.Warn("job interrupted by restart", "job_id", id)
		}
	} else {
		logger.Info("no database configured, job history is in-memory only")
	}

	// Create the generation backend
	generator, err := generate.NewGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create generator", "error", err)
		os.Exit(1)
	}

	// Wire the pipeline
	registry := service.NewRegistry(dbClient, logger)
	events := hub.New(logger)
	runner := service.NewRunner(registry, versions, generator, events, collector, logger)

	srv := server.New(runner, registry, versions, events, collector, version, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server ready", "url", "http://localhost:"+cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
