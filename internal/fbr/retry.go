package fbr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

// RetryConfig bounds RetryingCatalog.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry bounds used by the console and worker.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// RetryingCatalog retries transport failures and 5xx upstream failures with
// exponential backoff. Authentication and other 4xx failures return at once.
type RetryingCatalog struct {
	source Catalog
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetryingCatalog wraps source.
func NewRetryingCatalog(source Catalog, cfg RetryConfig, logger *slog.Logger) *RetryingCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingCatalog{source: source, cfg: cfg, logger: logger}
}

// ListHSCodes implements Catalog.
func (r *RetryingCatalog) ListHSCodes(ctx context.Context, credential string) ([]HSCode, error) {
	var codes []HSCode
	op := func() error {
		var err error
		codes, err = r.source.ListHSCodes(ctx, credential)
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("fbr catalog retry",
			slog.String("kind", httpx.KindName(err)),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}
	if err := backoff.RetryNotify(op, r.policy(ctx), notify); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *RetryingCatalog) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		exp.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		exp.MaxInterval = r.cfg.MaxInterval
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, r.cfg.MaxRetries), ctx)
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, httpx.ErrTransport):
		return true
	case errors.Is(err, httpx.ErrUpstream):
		status := httpx.StatusOf(err)
		return status == 0 || status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	default:
		return false
	}
}
