// Package main is the entry point for the Vigil portfolio risk service.
// Vigil keeps a portfolio of holdings, maintains the price history behind it,
// and serves risk analytics over HTTP: historical VaR/CVaR, variance
// decomposition, correlation structure and Monte Carlo projections of
// portfolio value.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/database"
	"github.com/aristath/vigil/internal/modules/charts"
	chartshandlers "github.com/aristath/vigil/internal/modules/charts/handlers"
	insightshandlers "github.com/aristath/vigil/internal/modules/insights/handlers"
	"github.com/aristath/vigil/internal/modules/marketdata"
	marketdatahandlers "github.com/aristath/vigil/internal/modules/marketdata/handlers"
	"github.com/aristath/vigil/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/vigil/internal/modules/portfolio/handlers"
	"github.com/aristath/vigil/internal/modules/risk"
	riskhandlers "github.com/aristath/vigil/internal/modules/risk/handlers"
	"github.com/aristath/vigil/internal/modules/simulation"
	simulationhandlers "github.com/aristath/vigil/internal/modules/simulation/handlers"
	"github.com/aristath/vigil/internal/reliability"
	"github.com/aristath/vigil/internal/scheduler"
	"github.com/aristath/vigil/internal/server"
	"github.com/aristath/vigil/pkg/logger"
)

func main() {
	// 1. Load configuration from environment (.env supported)
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Initialize structured logging
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Vigil")

	// 3. Open databases and apply embedded schemas
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/portfolio.db",
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileArchive,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	databases := map[string]*database.DB{
		"portfolio": portfolioDB,
		"history":   historyDB,
		"cache":     cacheDB,
	}
	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
		}
	}

	// 4. Construct market data gateway (the only component that talks to
	// Yahoo Finance; everything downstream consumes its stored history)
	yahooClient := marketdata.NewYahooClient(log)
	historyRepo := marketdata.NewHistoryRepository(historyDB.Conn(), log)
	quoteCache := marketdata.NewQuoteCache(
		cacheDB.Conn(),
		time.Duration(cfg.QuoteCacheMinutes)*time.Minute,
		log,
	)
	marketSvc := marketdata.NewService(yahooClient, historyRepo, quoteCache, log)

	// 5. Construct portfolio and analytics services
	holdingRepo := portfolio.NewHoldingRepository(portfolioDB.Conn(), log)
	snapshotRepo := portfolio.NewSnapshotRepository(portfolioDB.Conn(), log)
	portfolioSvc := portfolio.NewService(holdingRepo, marketSvc, log)

	riskSvc := risk.NewService(log)
	simSvc := simulation.NewService(log)
	chartSvc := charts.NewService(snapshotRepo, historyRepo, log)

	portfolioSimOpts := simulation.Options{
		HorizonDays:    cfg.Simulation.PortfolioHorizonDays,
		NumSimulations: cfg.Simulation.PortfolioPaths,
		Seed:           cfg.Simulation.Seed,
	}
	assetSimOpts := simulation.Options{
		HorizonDays:    cfg.Simulation.AssetHorizonDays,
		NumSimulations: cfg.Simulation.AssetPaths,
		Seed:           cfg.Simulation.Seed,
	}

	// 6. Cloud backups (optional, requires R2 credentials)
	var r2BackupSvc *reliability.R2BackupService
	if cfg.Backup.Enabled && cfg.Backup.Configured() {
		r2Client, err := reliability.NewR2Client(
			cfg.Backup.R2AccountID,
			cfg.Backup.R2AccessKeyID,
			cfg.Backup.R2SecretAccessKey,
			cfg.Backup.R2BucketName,
			log,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize R2 client, backups disabled")
		} else {
			backupSvc := reliability.NewBackupService(databases, log)
			r2BackupSvc = reliability.NewR2BackupService(
				r2Client,
				backupSvc,
				cfg.DataDir,
				cfg.Backup.RetentionDays,
				log,
			)
			log.Info().Int("retention_days", cfg.Backup.RetentionDays).Msg("R2 backups enabled")
		}
	}

	// 7. Register background jobs
	sched := scheduler.New(log)

	refreshJob := scheduler.NewRefreshHistoryJob(holdingRepo, marketSvc, cfg.HistoryLookbackDays, log)
	snapshotJob := scheduler.NewSnapshotJob(portfolioSvc, snapshotRepo, log)
	maintenanceJob := scheduler.NewMaintenanceJob(databases, marketSvc, snapshotRepo, cfg.SnapshotRetentionDays, log)

	jobs := []scheduler.Job{refreshJob, snapshotJob, maintenanceJob}
	// Refresh after the US close, snapshot right after, maintain hourly.
	jobSchedules := map[string]string{
		refreshJob.Name():     "0 30 22 * * MON-FRI",
		snapshotJob.Name():    "0 45 22 * * *",
		maintenanceJob.Name(): "0 10 * * * *",
	}

	if r2BackupSvc != nil {
		backupJob := scheduler.NewBackupJob(r2BackupSvc, log)
		jobs = append(jobs, backupJob)
		jobSchedules[backupJob.Name()] = "0 0 3 * * *"
	}

	for _, job := range jobs {
		if err := sched.AddJob(jobSchedules[job.Name()], job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
		}
	}

	// 8. Build the HTTP server: module routes, system endpoints, live feed
	systemHandlers := server.NewSystemHandlers(
		log,
		cfg.DataDir,
		databases,
		holdingRepo,
		historyRepo,
		r2BackupSvc,
	)
	systemHandlers.SetJobs(jobs...)

	liveFeed := server.NewLiveFeed(func() (interface{}, error) {
		value, err := portfolioSvc.Value()
		if err != nil {
			return nil, err
		}
		count, err := portfolioSvc.HoldingsCount()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":        "portfolio_snapshot",
			"total_value": value,
			"holdings":    count,
			"timestamp":   time.Now().Format(time.RFC3339),
		}, nil
	}, 15*time.Second, log)

	srv := server.New(server.Config{
		Log:    log,
		Config: cfg,
		Modules: []server.RouteRegistrar{
			portfoliohandlers.NewHandler(portfolioSvc, snapshotRepo, log),
			riskhandlers.NewHandler(riskSvc, portfolioSvc, marketSvc, cfg.HistoryLookbackDays, cfg.DefaultConfidence, log),
			simulationhandlers.NewHandler(simSvc, portfolioSvc, marketSvc, cfg.HistoryLookbackDays, portfolioSimOpts, assetSimOpts, log),
			insightshandlers.NewHandler(riskSvc, simSvc, portfolioSvc, marketSvc, cfg.HistoryLookbackDays, cfg.DefaultConfidence, portfolioSimOpts, assetSimOpts, log),
			marketdatahandlers.NewHandler(marketSvc, cfg.HistoryLookbackDays, log),
			chartshandlers.NewHandler(chartSvc, simSvc, portfolioSvc, marketSvc, cfg.HistoryLookbackDays, portfolioSimOpts, assetSimOpts, log),
		},
		System: systemHandlers,
		Live:   liveFeed,
	})

	// 9. Start everything
	sched.Start()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Msg("Vigil is running")

	// 10. Wait for shutdown signal, then stop gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	sched.Stop()

	log.Info().Msg("Vigil stopped")
}
