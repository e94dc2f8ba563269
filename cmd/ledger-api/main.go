package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"budgetledger/internal/amqp"
	"budgetledger/internal/config"
	apphttp "budgetledger/internal/http"
	applog "budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
)

func main() {
	// .env is for local development; containers pass real env vars.
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := applog.Setup(applog.ComponentApp, level)

	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	loc := cfg.Location()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Without a broker the export worker's polling picks the rows up later.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, cash flows will not be announced", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:        services.NewLedgerService(repo, publisher, loc),
		Categories:    services.NewCategoryService(repo, loc),
		Budgets:       services.NewBudgetService(repo, loc),
		Subscriptions: services.NewSubscriptionService(repo, loc),
		Goals:         services.NewGoalService(repo, publisher, loc),
		Dashboard:     services.NewDashboardService(repo, loc),
		Reports:       services.NewReportService(repo, loc),
	}, apphttp.Options{
		JWTSecret:           cfg.JWTSecret,
		Location:            loc,
		IdempotencyTTL:      cfg.IdempotencyTTL,
		IdempotencyCapacity: cfg.IdempotencyCapacity,
		Logger:              logger.WithComponent(applog.ComponentHTTP),
		Ready:               repo,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting ledger API", "port", cfg.Port, "timezone", loc.String(), "amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
