package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	jobmetrics "github.com/Xenax33/fbr-invoice-frontend-sub001/internal/jobs"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CatalogRefresher replaces the cached listing for a credential.
type CatalogRefresher interface {
	Refresh(ctx context.Context, credential string) ([]fbr.HSCode, error)
}

// CatalogRefreshJob keeps the cached FBR catalog warm for the configured account.
type CatalogRefreshJob struct {
	Catalog  CatalogRefresher
	Accounts fbr.AccountSource
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewCatalogRefreshJob wires dependencies for the refresh handler.
func NewCatalogRefreshJob(catalog CatalogRefresher, accounts fbr.AccountSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	return &CatalogRefreshJob{Catalog: catalog, Accounts: accounts, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCatalogRefresh tasks.
func (j *CatalogRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil || j.Accounts == nil {
		return errors.New("catalog refresh: handler not configured")
	}
	var payload CatalogRefreshPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskCatalogRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger().With(slog.String("reason", payload.Reason))

	cred, err := fbr.ResolveCredential(ctx, j.Accounts)
	if err != nil {
		resultErr = noRetryOnAuth(fmt.Errorf("resolve credential: %w", err))
		logger.Error("catalog refresh skipped", slog.Any("error", err))
		return resultErr
	}
	logger = logger.With(slog.String("environment", string(cred.Environment)))

	codes, err := j.Catalog.Refresh(ctx, cred.Token)
	if err != nil {
		resultErr = noRetryOnAuth(fmt.Errorf("refresh catalog: %w", err))
		logger.Error("catalog refresh failed", slog.String("kind", httpx.KindName(err)), slog.Any("error", err))
		return resultErr
	}

	logger.Info("catalog refreshed",
		slog.Int("codes", len(codes)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *CatalogRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogRefresh))
	}
	return slog.Default().With(slog.String("job", TaskCatalogRefresh))
}

func (j *CatalogRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// Retrying a rejected credential cannot succeed until an operator fixes it.
func noRetryOnAuth(err error) error {
	if errors.Is(err, httpx.ErrAuthentication) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
