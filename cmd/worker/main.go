package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/app"
	jobmetrics "github.com/Xenax33/fbr-invoice-frontend-sub001/internal/jobs"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/cache"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "worker")

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// no UI listens to the worker's busy indicator
	catalogs := app.NewCatalogs(cfg, logger, nil, redisClient, nil)
	metrics := jobmetrics.NewMetrics(nil)
	account := cfg.FBRAccount()

	refreshJob := jobs.NewCatalogRefreshJob(catalogs.External, account, logger, metrics)
	reconcileJob := jobs.NewReconcileScanJob(catalogs.Reconciler, account, logger, metrics)

	refreshTask, err := jobs.NewCatalogRefreshTask("cron")
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	reconcileTask, err := jobs.NewReconcileTask(cfg.ReconcileSearch)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.CatalogRefreshCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.CatalogRefreshCron, Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	if cfg.ReconcileCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskHSCodeReconcile, Handler: reconcileJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
