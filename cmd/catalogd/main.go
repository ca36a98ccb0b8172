package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/app"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/observability"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/db"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping catalog startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "catalogd")

	var (
		repo  hscode.Repository
		ready func(*http.Request) error
	)
	switch cfg.CatalogStore {
	case app.StoreMemory:
		logger.Warn("using in-memory catalog store; data is lost on restart")
		repo = hscode.NewMemoryRepository()
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.PGAutoMigrate {
			if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
				logger.Error("migrate database", slog.Any("error", err))
				os.Exit(1)
			}
		}
		repo = hscode.NewPostgresRepository(pool)
		ready = func(r *http.Request) error { return pool.Ping(r.Context()) }
	}

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		CatalogHandler: hscode.NewHandler(logger, hscode.NewService(repo)),
		Ready:          ready,
	})

	server := &http.Server{
		Addr:         cfg.CatalogAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting catalog server", slog.String("addr", cfg.CatalogAddr), slog.String("store", cfg.CatalogStore))
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
