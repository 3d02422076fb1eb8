package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"LevelWatch/internal/di"
	"LevelWatch/pkg/config"
	applogger "LevelWatch/pkg/logger"
	pkgqueue "LevelWatch/pkg/queue"
)

// The backtest worker consumes queued runs, fetches missing history,
// simulates, and persists results. It shares the run and bar stores with
// the live service but runs as a separate process so heavy simulations
// never stall streaming ingest.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	workers := flag.Int("workers", 1, "concurrent run workers; values above 1 trade queued-order execution for throughput")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	chClient, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		l.Error("clickhouse init failed", applogger.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}()

	barStore, err := di.ProvideBarStore(chClient, l)
	if err != nil {
		l.Error("bar store init failed", applogger.Error(err))
		os.Exit(1)
	}
	runStore, err := di.ProvideRunStore(chClient, l)
	if err != nil {
		l.Error("run store init failed", applogger.Error(err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Backtest.Redis.Addr,
		Password: cfg.Backtest.Redis.Password,
		DB:       cfg.Backtest.Redis.DB,
	})
	defer rdb.Close()

	if *workers > 1 {
		l.Warn("multiple workers run queued jobs concurrently; runs no longer finish in submission order",
			applogger.Int("workers", *workers))
	}

	opts := []pkgqueue.RedisQueueOption{}
	if cfg.Backtest.QueueName != "" {
		opts = append(opts, pkgqueue.WithKeyPrefix(cfg.Backtest.QueueName))
	}
	queue := pkgqueue.NewRedisConsumer(l, &pkgqueue.QueueConfig{
		Workers:   *workers,
		QueueSize: 100,
	}, rdb, nil, opts...)

	runner := di.ProvideBacktestRunner(
		runStore,
		barStore,
		di.ProvideHistory(cfg, l),
		queue,
		di.ProvideCoverageLocks(cfg, l),
		di.ProvideMetrics(),
		l,
		cfg,
	)
	queue.RegisterJob(runner)

	if err := queue.Start(); err != nil {
		l.Error("queue start failed", applogger.Error(err))
		os.Exit(1)
	}
	l.Info("backtest worker started",
		applogger.String("redis", cfg.Backtest.Redis.Addr),
		applogger.Int("workers", *workers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Stop(ctx); err != nil {
		l.Warn("queue stop error", applogger.Error(err))
	}
	l.Info("shutdown complete")
}
