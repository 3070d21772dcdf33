package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ledger-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app, err := cli.Bootstrap(context.Background())
	if err != nil {
		return err
	}
	logger := app.Logger.WithComponent(log.ComponentWorker)
	cfg := app.Config

	logger.Info("Starting ledger-worker",
		"backend", cfg.DataBackend,
		"schedule", cfg.RefreshSchedule,
		"months_past", cfg.MonthsPast,
		"months_future", cfg.MonthsFuture,
		"amqp_enabled", app.Backend.AMQP != nil)

	var publisher services.SummaryPublisher
	if app.Backend.AMQP != nil {
		publisher = app.Backend.AMQP
	}
	processor := services.NewRefreshProcessor(app.Ledger, publisher, cfg.MonthsPast, cfg.MonthsFuture, cfg.SortDirection())

	app.Caches.StartCleanup(cfg.CacheTTL)

	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		<-scheduler.Stop().Done()
		if err := app.Close(); err != nil {
			logger.Error("Failed to release backend", log.NewFields().WithError(err).WithOperation(log.OpShutdown).ToSlice()...)
		}
	})

	refresh := func() {
		start := time.Now()
		n, err := processor.Refresh(ctx)
		if err != nil {
			logger.Error("Ledger refresh failed", "error", err)
			return
		}
		logger.Info("Ledger refresh complete", "months", n, "duration_ms", time.Since(start).Milliseconds())
	}

	if _, err := scheduler.AddFunc(cfg.RefreshSchedule, refresh); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", cfg.RefreshSchedule, err)
	}

	logger.Info("Running initial ledger refresh...")
	refresh()
	scheduler.Start()

	if app.Backend.AMQP != nil {
		go func() {
			err := app.Backend.AMQP.RunLedgerChangedConsumer(ctx, processor.HandleChange)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger change consumer stopped", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	return nil
}
