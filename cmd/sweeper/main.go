package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"giftledger/internal/config"
	"giftledger/internal/database"
	"giftledger/internal/events"
	"giftledger/internal/logger"
	"giftledger/internal/server"
	"giftledger/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	once := flag.Bool("once", false, "run the expiry sweep and a reconciliation, then exit")
	flag.Parse()

	if err := run(*once); err != nil {
		logger.Get().Fatalf("Sweeper error: %v", err)
	}
}

func run(once bool) error {
	log := logger.Named("sweeper")

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := events.Connect(ctx, appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB, appConfig.EventsQueue)
	svc := server.NewServices(dbManager.DB(), services.SettingsFromConfig(appConfig), publisher)

	if once {
		sweep(ctx, log, svc.Expiry)
		reconcile(ctx, log, svc.Reconcile)
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(appConfig.SweepSchedule, func() { sweep(ctx, log, svc.Expiry) }); err != nil {
		return fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", appConfig.SweepSchedule, err)
	}
	if _, err := c.AddFunc(appConfig.ReconcileSchedule, func() { reconcile(ctx, log, svc.Reconcile) }); err != nil {
		return fmt.Errorf("invalid RECONCILE_SCHEDULE %q: %w", appConfig.ReconcileSchedule, err)
	}

	log.Infow("sweeper started", "sweep", appConfig.SweepSchedule, "reconcile", appConfig.ReconcileSchedule)
	c.Start()
	<-ctx.Done()

	// Wait for a running job before closing the database.
	<-c.Stop().Done()
	log.Info("sweeper stopped")
	return nil
}

func sweep(ctx context.Context, log *zap.SugaredLogger, expiry services.ExpiryServicer) {
	start := time.Now()
	report, err := expiry.CloseExpired(ctx)
	if err != nil {
		log.Errorw("expiry sweep failed", "error", err)
		return
	}
	log.Infow("expiry sweep done",
		"closed", len(report.Closed),
		"skipped", len(report.Skipped),
		"swept", report.Swept,
		"duration", time.Since(start).String(),
	)
}

func reconcile(ctx context.Context, log *zap.SugaredLogger, rec services.ReconcileServicer) {
	report, err := rec.Check(ctx)
	if err != nil {
		log.Errorw("reconciliation failed", "error", err)
		return
	}
	if !report.Balanced {
		log.Errorw("ledger drift detected", "drifts", report.Drifts, "book_totals", report.BookTotals)
		return
	}
	log.Infow("ledger balanced", "holders", report.Holders)
}
