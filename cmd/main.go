package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hms-notification-service/internal/config"
	"hms-notification-service/internal/server"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	code := run(cfg, logger)
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg config.AppConfig, logger *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("Notification service init failed", zap.Error(err))
		return 1
	}

	// Shutdown runs on every exit path below, including listener failure.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Notification service shutdown error", zap.Error(err))
			return
		}
		logger.Info("Notification service stopped")
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Signal received, shutting down gracefully")
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error("Notification service failed", zap.Error(err))
			return 1
		}
		return 0
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
