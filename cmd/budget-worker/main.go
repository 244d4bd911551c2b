package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetsense/internal/amqp"
	"budgetsense/internal/cli"
	gsheet "budgetsense/internal/sheets/google"
	"budgetsense/internal/services"
	"budgetsense/internal/store/firebase"
	"budgetsense/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	logger.Info("Starting budget-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.UsesSQL() {
		logger.Error("budget-worker needs a SQL data backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo := cli.InitRepository(logger, cfg)
	defer repo.Close()

	var mirrors []worker.Mirror
	if cfg.FirebaseDatabaseURL != "" {
		fb, err := firebase.New(context.Background(), cfg.FirebaseDatabaseURL, cfg.FirebasePath, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Error("Failed to initialize Firebase client", "error", err)
			os.Exit(1)
		}
		mirrors = append(mirrors, worker.Mirror{Name: "firebase", Writer: fb})
		logger.Info("Firebase mirror enabled", "path", cfg.FirebasePath)
	}
	if cfg.GoogleSpreadsheetID != "" {
		ledger, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirrors = append(mirrors, worker.Mirror{Name: "sheets", Writer: ledger})
		logger.Info("Google Sheets ledger enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	}
	if len(mirrors) == 0 {
		logger.Warn("No mirrors configured, predictions will only be marked synced")
	}

	syncWorker := worker.NewSyncWorker(repo, mirrors, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled, relying on periodic sync only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", "error", err)
		}
	})

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Don't exit, the periodic sync retries.
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumePredictionSync(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	logger.Info("budget-worker running",
		"backend", cfg.DataBackend,
		"mirrors", len(mirrors),
		"sync_interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
