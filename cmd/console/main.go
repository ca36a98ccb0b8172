package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/cmd/console/cli"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/app"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/console"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/observability"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/cache"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping console startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "console")

	if len(os.Args) > 1 && os.Args[1] == "trigger" {
		if err := trigger(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("trigger job", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	metrics := observability.NewMetrics()
	busy := loading.NewSignal()
	stopGauge := metrics.ObserveLoading(busy)
	defer stopGauge()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, fbr catalog is served uncached", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogs := app.NewCatalogs(cfg, logger, metrics, redisClient, busy)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	consoleHandler := console.NewHandler(console.Config{
		Local:      catalogs.Local,
		External:   catalogs.External,
		Accounts:   cfg.FBRAccount(),
		Reconciler: catalogs.Reconciler,
		Refresh:    jobClient,
		Signal:     busy,
		Logger:     logger,
	})
	defer consoleHandler.Close()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		ConsoleHandler: consoleHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Ready: func(r *http.Request) error {
			return cache.Ping(r.Context(), redisClient)
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	server.RegisterOnShutdown(consoleHandler.CloseStreams)

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// trigger handles `console trigger <task> [search]`.
func trigger(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: console trigger <%s> [search]", strings.Join(cli.Tasks(), "|"))
	}
	search := ""
	if len(args) > 1 {
		search = args[1]
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	info, err := jobsCLI.Trigger(ctx, args[0], search)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return nil
}
