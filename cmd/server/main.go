// Package main is the entry point for the stock agent: a cache-first market
// data and AI analysis service with a persistent SQLite store.
//
// Startup sequence:
//  1. Load configuration from environment variables (.env supported)
//  2. Initialize structured logging
//  3. Open and migrate the store, sweep expired cache rows
//  4. Wire provider clients, adapters and repositories
//  5. Register scheduled jobs (cache cleanup, maintenance, backups)
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ataha322/stock-agent-hackathon/internal/analysis"
	"github.com/ataha322/stock-agent-hackathon/internal/cache"
	"github.com/ataha322/stock-agent-hackathon/internal/clients/alphavantage"
	"github.com/ataha322/stock-agent-hackathon/internal/clients/perplexity"
	"github.com/ataha322/stock-agent-hackathon/internal/config"
	"github.com/ataha322/stock-agent-hackathon/internal/database"
	"github.com/ataha322/stock-agent-hackathon/internal/inflight"
	"github.com/ataha322/stock-agent-hackathon/internal/market"
	"github.com/ataha322/stock-agent-hackathon/internal/metering"
	"github.com/ataha322/stock-agent-hackathon/internal/reliability"
	"github.com/ataha322/stock-agent-hackathon/internal/scheduler"
	"github.com/ataha322/stock-agent-hackathon/internal/server"
	"github.com/ataha322/stock-agent-hackathon/internal/watchlist"
	"github.com/ataha322/stock-agent-hackathon/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting stock agent")

	// Open and migrate the store.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "stockagent.db"),
		Profile: database.ProfileCache,
		Name:    "stockagent",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate store")
	}

	store := cache.NewRepository(db.Conn())

	// One sweep at startup so a long-stopped instance doesn't serve from a
	// store full of dead rows.
	if deleted, err := store.SweepExpired(); err != nil {
		log.Warn().Err(err).Msg("Startup cache sweep failed")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Swept expired cache entries at startup")
	}

	// Provider clients.
	marketClient := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
	marketClient.SetDailyLimit(cfg.DailyRequestBudget)

	aiClient := perplexity.NewClient(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, log)

	var meter metering.Collector
	if cfg.MeteringURL != "" {
		meter = metering.NewHTTPCollector(cfg.MeteringURL, log)
	}

	// Adapters and stores.
	guard := inflight.NewGuard()
	marketAdapter := market.NewAdapter(marketClient, store, log)
	analysisAdapter := analysis.NewAdapter(aiClient, store, guard, meter, log)
	watchRepo := watchlist.NewRepository(db.Conn(), log)
	refreshService := watchlist.NewRefreshService(watchRepo, marketAdapter, log)

	// Scheduled jobs.
	sched := scheduler.New(log)

	if err := sched.AddJob("@daily", cache.NewCleanupJob(store, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	if err := sched.AddJob("0 2 * * *", reliability.NewMaintenanceJob(db, cfg.DataDir, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	var backupService *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
			Region:    cfg.Backup.Region,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup client")
		}

		backupService = reliability.NewBackupService(db, s3Client, cfg.DataDir, cfg.Backup.KeepLast, log)
		if err := sched.AddJob("@weekly", reliability.NewBackupJob(backupService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()

	// HTTP server.
	srv := server.New(server.Config{
		Log:       log,
		DB:        db,
		Cache:     store,
		Market:    marketAdapter,
		Analysis:  analysisAdapter,
		Watchlist: watchRepo,
		Refresh:   refreshService,
		Backups:   backupService,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for a shutdown signal or a server failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	sched.Stop()

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		log.Warn().Err(err).Msg("Final WAL checkpoint failed")
	}

	log.Info().Msg("Stock agent stopped")
}
