package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classsync/internal/app"
	"classsync/internal/config"
	"classsync/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorw("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	application, err := app.NewApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	log.Infow("classsync running", "addr", application.GetAddr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received shutdown signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return application.Stop(shutdownCtx)
}
