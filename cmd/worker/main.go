package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"civictrust/internal/app"
	"civictrust/internal/governance/jobs"
	"civictrust/internal/platform/config"
	"civictrust/internal/platform/logger"
)

// main runs the background seal worker. It shares the pool backend with the
// API server and seals pools the server scheduled on reaching quorum.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()
	if a.Redis == nil {
		log.Error("worker requires CIVIC_REDIS_URL")
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   a.Redis.AsynqOpt(),
		Logger:      log,
		Concurrency: cfg.Governance.WorkerConcurrency,
		SealJob:     jobs.NewSealJob(a.Pools, log),
	})
	if err != nil {
		log.Error("init worker", "error", err)
		os.Exit(1)
	}

	log.Info("starting seal worker", "pool_backend", cfg.Governance.PoolBackend)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker run", "error", err)
		os.Exit(1)
	}
}
