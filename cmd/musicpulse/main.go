package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/deusflow/musicpulse/internal/app"
	"github.com/deusflow/musicpulse/internal/config"
	"github.com/deusflow/musicpulse/internal/logger"
	"github.com/deusflow/musicpulse/internal/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger.Init(false)

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}
	if cfg.Verbose {
		logger.Init(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Deps{})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	if cfg.Schedule == "" {
		res, err := a.Run(ctx)
		if err != nil {
			logger.Error("run failed", "error", err)
			return 1
		}
		logger.Info("report written", "files", res.Paths)
		return 0
	}

	sched, err := scheduler.New(ctx, cfg.Schedule, cfg.Location, func(ctx context.Context) error {
		_, err := a.Run(ctx)
		return err
	})
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		return 2
	}
	if cfg.MonitorAddr != "" {
		go startMonitoringServer(ctx, cfg.MonitorAddr, a)
	}
	sched.Run(ctx)
	return 0
}
