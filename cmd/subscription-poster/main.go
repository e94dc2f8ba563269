package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"budgetledger/internal/amqp"
	"budgetledger/internal/config"
	"budgetledger/internal/lock"
	applog "budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
	"budgetledger/internal/worker"
)

const runLockKey = "budgetledger:subscription-poster"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := applog.Setup(applog.ComponentPoster, level)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The local lock keeps runs in this process sequential; Redis extends
	// that to every poster sharing the database.
	locker := lock.Locker(lock.NewLocalLocker())
	if cfg.RedisAddr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer rdb.Close()
		locker = lock.Chain(locker, lock.NewRedisLocker(rdb, runLockKey, cfg.RunLockTTL))
		logger.Info("Run lock shared through Redis", "addr", cfg.RedisAddr)
	}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, posted cash flows will not be announced", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	poster := services.NewSubscriptionPoster(repo, locker, publisher, loc, services.PosterConfig{
		Workers:             cfg.PosterWorkers,
		SubscriptionTimeout: cfg.SubscriptionTimeout,
	})

	hour, minute, err := worker.ParseClock(cfg.PostingTime)
	if err != nil {
		logger.Error("Invalid posting time", "error", err)
		os.Exit(1)
	}
	scheduler, err := worker.NewDailyScheduler("subscription-poster", hour, minute, loc, func(ctx context.Context) {
		report := poster.PostDueSubscriptions(ctx)
		if len(report.Failures) > 0 || report.ListError != nil {
			logger.Warn("Subscription posting finished with failures",
				applog.FieldRunID, report.RunID,
				"failures", len(report.Failures),
				"list_error", report.ListError)
		}
	})
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting subscription poster",
		"posting_time", cfg.PostingTime,
		"timezone", loc.String(),
		"workers", cfg.PosterWorkers)

	scheduler.Run(ctx)
	logger.Info("Subscription poster stopped")
}
