package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/observability"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/reconcile"
)

// Catalogs bundles both catalog clients and the reconciler built over them.
type Catalogs struct {
	Local      *hscode.Client
	External   *fbr.CachedCatalog
	Reconciler *reconcile.Reconciler
}

// NewCatalogs wires the local catalog client and the FBR client stack:
// rate limited transport, retries, then the Redis cache. signal may be nil.
func NewCatalogs(cfg *Config, logger *slog.Logger, metrics *observability.Metrics, redisClient *redis.Client, signal *loading.Signal) Catalogs {
	localRC := rest.NewClient("catalog", cfg.CatalogAPIURL,
		rest.WithTokenSource(rest.StaticToken(cfg.CatalogAPIToken)),
		rest.WithTimeout(cfg.AppRequestTimeout),
		rest.WithRecorder(metrics),
		rest.WithLogger(logger),
	)
	local := hscode.NewClient(localRC)

	fbrOpts := []rest.Option{
		rest.WithTimeout(cfg.FBRTimeout),
		rest.WithRecorder(metrics),
		rest.WithLogger(logger),
	}
	if cfg.FBRRateLimit > 0 {
		fbrOpts = append(fbrOpts, rest.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.FBRRateLimit), 1)))
	}
	source := fbr.NewRetryingCatalog(fbr.NewClient(fbr.NewRESTClient(cfg.FBRAPIURL, fbrOpts...)), cfg.FBRRetry(), logger)
	external := fbr.NewCachedCatalog(source, redisClient, cfg.FBRCacheTTL, logger)

	reconciler := reconcile.New(local, external, reconcile.Options{
		MaxPages: cfg.ReconcileMaxPages,
		Signal:   signal,
		Logger:   logger,
	})
	return Catalogs{Local: local, External: external, Reconciler: reconciler}
}
