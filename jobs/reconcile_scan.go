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
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/reconcile"
)

// maxLoggedDrift caps per-code drift log lines for a single run.
const maxLoggedDrift = 50

// Reconciler runs one reconciliation.
type Reconciler interface {
	Reconcile(ctx context.Context, search, credential string) (reconcile.Result, error)
}

// ReconcileScanJob compares the local and FBR catalogs on a schedule and
// reports drift.
type ReconcileScanJob struct {
	Reconciler Reconciler
	Accounts   fbr.AccountSource
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReconcileScanJob wires dependencies for the scan handler.
func NewReconcileScanJob(reconciler Reconciler, accounts fbr.AccountSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileScanJob {
	return &ReconcileScanJob{Reconciler: reconciler, Accounts: accounts, Logger: logger, Metrics: metrics}
}

// Handle processes TaskHSCodeReconcile tasks.
func (j *ReconcileScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reconciler == nil || j.Accounts == nil {
		return errors.New("reconcile scan: handler not configured")
	}
	var payload ReconcilePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskHSCodeReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger().With(slog.String("search", payload.Search))
	logger.Info("starting reconcile scan")

	cred, err := fbr.ResolveCredential(ctx, j.Accounts)
	if err != nil {
		resultErr = noRetryOnAuth(fmt.Errorf("resolve credential: %w", err))
		logger.Error("reconcile scan skipped", slog.Any("error", err))
		return resultErr
	}

	res, err := j.Reconciler.Reconcile(ctx, payload.Search, cred.Token)
	if err != nil {
		resultErr = err
		logger.Error("reconcile scan failed", slog.Any("error", err))
		return resultErr
	}
	if res.Partial() {
		// drift from a one-sided view would read as mass disappearance
		if res.LocalErr != nil {
			resultErr = fmt.Errorf("reconcile scan: local catalog: %w", res.LocalErr)
		} else {
			resultErr = noRetryOnAuth(fmt.Errorf("reconcile scan: fbr catalog: %w", res.ExternalErr))
		}
		logger.Warn("reconcile scan incomplete", slog.Any("error", resultErr))
		return resultErr
	}

	for _, status := range []reconcile.Status{
		reconcile.StatusMatched,
		reconcile.StatusDescriptionMismatch,
		reconcile.StatusMissingExternal,
		reconcile.StatusUntracked,
	} {
		j.metrics().SetDrift(string(status), res.Counts[status])
	}

	logged := 0
	for _, e := range res.Entries {
		if e.Status == reconcile.StatusMatched {
			continue
		}
		if logged == maxLoggedDrift {
			logger.Warn("hs code drift truncated", slog.Int("remaining", len(res.Entries)-res.Counts[reconcile.StatusMatched]-logged))
			break
		}
		logged++
		logger.Warn("hs code drift", slog.String("code", e.Code), slog.String("status", string(e.Status)))
	}

	logger.Info("completed reconcile scan",
		slog.Int("local", res.LocalCount),
		slog.Int("external", res.ExternalCount),
		slog.Bool("truncated", res.Truncated),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ReconcileScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskHSCodeReconcile))
	}
	return slog.Default().With(slog.String("job", TaskHSCodeReconcile))
}

func (j *ReconcileScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
