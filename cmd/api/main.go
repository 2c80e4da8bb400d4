package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/auth"
	"rfidattend/internal/config"
	"rfidattend/internal/handler"
	"rfidattend/internal/logging"
	"rfidattend/internal/notify"
	"rfidattend/internal/queue"
	"rfidattend/internal/store"
	"rfidattend/internal/telegram"
)

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

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
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
	logger.Info("store opened", zap.String("backend", cfg.StoreBackend))

	registry := attendance.OpenRegistry(ctx, backend, logger)
	ledger := attendance.OpenLedger(ctx, backend, logger)
	gate := auth.NewGate(ctx, cfg.AuthKey, backend, logger)

	health := map[string]handler.HealthCheck{"store": backend.Healthy}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		rc := store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
		defer func() { _ = rc.Close() }()
		q = queue.NewRedisQueue(rc.Client, cfg.QueueKey)
		health["redis"] = rc.Healthy
	} else {
		q = queue.NewInMemory(64)
	}

	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramEndpoint, logger)
		if err != nil {
			logger.Error("telegram unavailable, notifications disabled", zap.Error(err))
			bot = nil
		}
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, notifications disabled")
	}

	var opts []attendance.Option
	// an in-memory queue without a consumer would only fill up
	if cfg.QueueBackend == "redis" || bot != nil {
		opts = append(opts, attendance.WithPublisher(q))
	}
	svc := attendance.NewService(registry, ledger, logger, opts...)

	var wg sync.WaitGroup
	if bot != nil && cfg.BotPolling {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx, telegram.NewHandler(gate, svc, logger)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bot stopped", zap.Error(err))
			}
		}()
	}
	if bot != nil && cfg.DispatchInProcess {
		d := notify.NewDispatcher(bot, gate, logger, cfg.NotifyTimeout)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dispatcher stopped", zap.Error(err))
			}
		}()
	}

	h := handler.New(svc, handler.Options{
		Admin: auth.Admin{
			APIKey:     cfg.APIKey,
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
		},
		TokenTTL:        cfg.AccessTTL,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health:          health,
		Logger:          logger,
	})
	if cfg.APIKey == "" {
		logger.Warn("API_KEY not set, administrative routes are open")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	// give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	wg.Wait()

	if ledger.Dirty() {
		if err := ledger.Flush(shutdownCtx); err != nil {
			logger.Error("ledger flush failed", zap.Error(err))
		}
	}
	logger.Info("server exited")
	return nil
}
