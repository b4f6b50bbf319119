package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetform/internal/amqp"
	"budgetform/internal/cli"
	applog "budgetform/internal/log"
	gsheet "budgetform/internal/recorder/google"
	"budgetform/internal/services"
	"budgetform/internal/worker"
)

func main() {
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting budgetform-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required by the worker")
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer repo.Close()

	sheets, err := gsheet.NewWithEnvAuth(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetName:     cfg.GoogleSheetName,
		YearPrefix:    cfg.GoogleSheetYearPrefix,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		logger.Warn("Could not verify sheet header", "sheet", sheets.SheetName(), applog.FieldError, err)
	}
	logger.Info("Google Sheets client initialized", "sheet", sheets.SheetName())

	syncWorker := worker.NewSyncWorker(repo, sheets, worker.Options{
		BatchSize:   cfg.SyncBatchSize,
		MaxAttempts: cfg.SyncMaxAttempts,
		Concurrency: cfg.SyncConcurrency,
	})

	// Rows written while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{PollInterval: cfg.SyncInterval})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeRowSync(gctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("AMQP disabled, relying on the periodic sweep", "interval", cfg.SyncInterval)
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("Shutting down worker...")
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
