// Package main runs the background worker that records captured checkout payments.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shul-site/backend/config"
	"github.com/shul-site/backend/internal/payments"
	"github.com/shul-site/backend/internal/worker"
	"github.com/shul-site/backend/pkg/database"
	"github.com/shul-site/backend/pkg/logger"
	"github.com/shul-site/backend/pkg/queue"
	"github.com/shul-site/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.Log.Level)
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, log)
	processor := worker.NewReceiptProcessor(payments.NewRepository(pool), jobQueue, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	log.Info("worker started", zap.String("queue", queue.QueueReceipts))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("worker did not stop in time")
	}
	log.Info("worker stopped")
}
