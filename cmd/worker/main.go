package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rfidattend/internal/auth"
	"rfidattend/internal/config"
	"rfidattend/internal/logging"
	"rfidattend/internal/notify"
	"rfidattend/internal/queue"
	"rfidattend/internal/store"
	"rfidattend/internal/telegram"
)

// Worker consumes scan messages from the shared Redis queue and broadcasts
// them to authorized Telegram chats.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.Must(cfg.Production(), cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func run(cfg config.App, logger *zap.Logger) error {
	if cfg.QueueBackend != "redis" {
		return errors.New("worker requires QUEUE_BACKEND=redis; the memory queue is drained inside the API process")
	}
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, store.Config{
		Kind:        cfg.StoreBackend,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = backend.Close() }()

	rc := store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
	defer func() { _ = rc.Close() }()
	if !rc.Healthy(ctx) {
		logger.Warn("redis not reachable yet, will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramEndpoint, logger)
	if err != nil {
		return err
	}

	// the API process owns the gate; read recipients from the store on every broadcast
	d := notify.NewDispatcher(bot, auth.StoredRecipients{Store: backend}, logger, cfg.NotifyTimeout)

	logger.Info("worker started, waiting for messages", zap.String("queue", cfg.QueueKey))
	if err := d.Run(ctx, queue.NewRedisQueue(rc.Client, cfg.QueueKey)); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
