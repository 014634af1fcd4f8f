package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

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
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "telemetry-pipeline",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	sourceName := flag.String("source", "", "Source to run (empty runs every configured source)")
	limit := flag.Int("limit", 0, "Batch cap override for this run")
	force := flag.Bool("force", false, "Bypass the minimum-interval due check")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

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
		archive = s3Storage
	}

	// Initialize data source connectors
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
			appLogger.WithError(err).Fatal("Failed to connect to fleet database")
		}
		connectors = append(connectors,
			livedb.NewLatest(fleetDB, appLogger),
			livedb.NewBackfill(fleetDB, appLogger),
		)
	}
	if len(connectors) == 0 {
		appLogger.Fatal("No sources configured")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel run on interrupt; locks are still released.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		appLogger.Warn("Interrupt received, cancelling run")
		cancel()
	}()

	targets := runner.Sources()
	if *sourceName != "" {
		targets = []string{*sourceName}
	}

	opts := service.RunOptions{Force: *force, Limit: *limit}
	exitCode := 0
	for _, target := range targets {
		result, err := runner.RunIfDue(ctx, target, opts)
		if err != nil {
			appLogger.WithError(err).WithField(logger.FieldSource, target).Error("Run failed")
			exitCode = 1
			continue
		}
		fields := logger.Fields{
			logger.FieldSource: target,
			"reason":           result.Reason,
			"processed":        result.Processed,
			"inserted":         result.Inserted,
			"skipped":          result.Skipped,
			"errors":           result.Errors,
		}
		if result.Ran && !result.Success {
			appLogger.WithFields(fields).Error("Run concluded with a fatal error")
			exitCode = 1
			continue
		}
		appLogger.WithFields(fields).Info("Run concluded")
	}

	logger.Sync()
	os.Exit(exitCode)
}
