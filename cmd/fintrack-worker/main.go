package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/client"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	logger.Info("Starting fintrack-worker", applog.FieldOperation, applog.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.InitLedgerStore(ctx, logger, cfg)
	defer store.Close()

	session, err := ledger.Open(ctx, store.Store, logger)
	if err != nil {
		logger.Error("Failed to load ledger", applog.FieldError, err.Error())
		os.Exit(1)
	}

	var writer sheets.ExpenseWriter
	if cfg.GoogleSpreadsheetID != "" {
		sc, err := gsheet.New(ctx, gsheet.FromAppConfig(cfg, logger))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		writer = sc
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	watcher, err := worker.NewBudgetWatcher(worker.Config{
		Session:          session,
		Calculator:       client.New(client.FromAppConfig(cfg, logger)),
		Sheets:           writer,
		Reserve:          cfg.WatchReserve,
		WarningRatio:     cfg.WatchWarningRatio,
		ReserveThreshold: cfg.WatchReserveThreshold,
		Location:         cfg.Location(),
		Logger:           logger,
	})
	if err != nil {
		logger.Error("Failed to create budget watcher", applog.FieldError, err.Error())
		os.Exit(1)
	}

	broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer broker.Close()

	var scheduler *worker.Scheduler
	if cfg.WatchInterval > 0 {
		scheduler = worker.NewScheduler(watcher, cfg.WatchInterval)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start budget scheduler", applog.FieldError, err.Error())
		}
	}

	done := cli.GracefulShutdown(ctx, logger, 30*time.Second, func(shutdownCtx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				logger.Warn("Budget scheduler did not stop cleanly", applog.FieldError, err.Error())
			}
		}
	})

	err = broker.ConsumeExpenseRecorded(ctx, watcher.HandleExpenseRecorded)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
	}
	cancel()
	<-done
	logger.Info("Worker stopped", applog.FieldOperation, applog.OpShutdown)
}
