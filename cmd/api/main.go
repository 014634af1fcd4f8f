package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/api"
	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/logger"
	"github.com/Adembenali2/cccomputer-sub001/internal/repository"
	"github.com/Adembenali2/cccomputer-sub001/internal/service"
	"github.com/Adembenali2/cccomputer-sub001/internal/source"
	"github.com/Adembenali2/cccomputer-sub001/internal/source/filedrop"
	"github.com/Adembenali2/cccomputer-sub001/internal/source/htmlreport"
	"github.com/Adembenali2/cccomputer-sub001/internal/source/jsonfeed"
	"github.com/Adembenali2/cccomputer-sub001/internal/source/livedb"
	"github.com/Adembenali2/cccomputer-sub001/internal/storage"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewDefault()
	defer logger.Sync()
	logger.SetDefaultLogger(appLogger)

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	readingRepo := repository.NewReadingRepository(db)
	checkpointRepo := repository.NewCheckpointRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	lockRepo := repository.NewLockRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	// Initialize raw-file archival when enabled
	var archive storage.ObjectStorage
	if cfg.Archive.Enabled {
		s3Storage, err := storage.NewS3Storage(&storage.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archival storage")
		}
		if err := s3Storage.EnsureBucket(context.Background()); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure archive bucket")
		}
		archive = s3Storage
	}

	// Initialize data source connectors
	connectors, err := buildConnectors(cfg, archive, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize connectors")
	}

	runner := service.NewRunner(
		readingRepo,
		checkpointRepo,
		ledgerRepo,
		lockRepo,
		deviceRepo,
		connectors,
		cfg.Pipeline,
		appLogger,
	)

	// Start scheduled runs when configured
	scheduler := startScheduler(runner, cfg.Pipeline.Schedules, appLogger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	// Setup router
	router := api.SetupRouter(db, runner, readingRepo, deviceRepo, cfg.Server, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// buildConnectors wires every configured source. Sources without
// configuration are simply absent from the registry.
func buildConnectors(cfg *config.Config, archive storage.ObjectStorage, appLogger *logger.Logger) ([]source.Connector, error) {
	var connectors []source.Connector

	if cfg.SFTP.Host != "" {
		connectors = append(connectors, filedrop.New(cfg.SFTP, archive, appLogger))
	}
	if cfg.JSONFeed.URL != "" {
		connectors = append(connectors, jsonfeed.New(cfg.JSONFeed))
	}
	if cfg.HTMLReport.URL != "" {
		connectors = append(connectors, htmlreport.New(cfg.HTMLReport))
	}
	if cfg.FleetDB.Host != "" {
		fleetDB, err := repository.InitFleetDB(&cfg.FleetDB)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors,
			livedb.NewLatest(fleetDB, appLogger),
			livedb.NewBackfill(fleetDB, appLogger),
		)
	}

	return connectors, nil
}

// startScheduler registers cron-driven runs per source. Scheduled runs go
// through the same due check and lock as manual triggers, so an external
// trigger and the schedule never double-run a source.
func startScheduler(runner *service.Runner, schedules map[string]string, appLogger *logger.Logger) *cron.Cron {
	if len(schedules) == 0 {
		return nil
	}

	c := cron.New()
	for sourceName, spec := range schedules {
		entryLogger := appLogger.WithField(logger.FieldSource, sourceName)
		_, err := c.AddFunc(spec, func() {
			ctx := logger.WithField(context.Background(), logger.FieldComponent, "scheduler")
			result, err := runner.RunIfDue(ctx, sourceName, service.RunOptions{})
			if err != nil {
				entryLogger.WithError(err).Error("Scheduled run failed")
				return
			}
			entryLogger.WithField("reason", result.Reason).Info("Scheduled run concluded")
		})
		if err != nil {
			entryLogger.WithError(err).Error("Invalid cron expression, schedule skipped")
		}
	}
	c.Start()
	appLogger.WithField("schedules", len(schedules)).Info("Scheduler started")
	return c
}
