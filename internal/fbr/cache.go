package fbr

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

const cacheKeyPrefix = "fbr:hscodes:"

// CachedCatalog caches successful listings in Redis per credential and
// collapses overlapping fetches for the same credential into one upstream
// call. Failures are never cached. A Redis outage degrades to the source.
type CachedCatalog struct {
	source Catalog
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedCatalog wraps source. A nil client disables caching but keeps
// de-duplication.
func NewCachedCatalog(source Catalog, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{source: source, client: client, ttl: ttl, logger: logger}
}

// ListHSCodes implements Catalog.
func (c *CachedCatalog) ListHSCodes(ctx context.Context, credential string) ([]HSCode, error) {
	key := CacheKey(credential)
	if codes, ok := c.load(ctx, key); ok {
		return codes, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// detached so one caller's cancellation does not fail the others
		fetchCtx := context.WithoutCancel(ctx)
		codes, err := c.source.ListHSCodes(fetchCtx, credential)
		if err != nil {
			return nil, err
		}
		c.store(fetchCtx, key, codes)
		return codes, nil
	})
	select {
	case <-ctx.Done():
		return nil, httpx.NewError(httpx.ErrTransport, 0, "", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		codes := res.Val.([]HSCode)
		out := make([]HSCode, len(codes))
		copy(out, codes)
		return out, nil
	}
}

// Invalidate drops the cached listing for credential.
func (c *CachedCatalog) Invalidate(ctx context.Context, credential string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, CacheKey(credential)).Err(); err != nil {
		return fmt.Errorf("fbr cache: invalidate: %w", err)
	}
	return nil
}

// Refresh re-fetches the listing for credential and replaces the cache entry.
func (c *CachedCatalog) Refresh(ctx context.Context, credential string) ([]HSCode, error) {
	if err := c.Invalidate(ctx, credential); err != nil {
		c.logger.Warn("fbr cache invalidate", slog.Any("error", err))
	}
	return c.ListHSCodes(ctx, credential)
}

func (c *CachedCatalog) load(ctx context.Context, key string) ([]HSCode, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("fbr cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var codes []HSCode
	if err := json.Unmarshal(raw, &codes); err != nil {
		c.logger.Warn("fbr cache decode", slog.Any("error", err))
		return nil, false
	}
	return codes, true
}

func (c *CachedCatalog) store(ctx context.Context, key string, codes []HSCode) {
	if c.client == nil || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("fbr cache write", slog.Any("error", err))
	}
}

// CacheKey derives the Redis key for credential without storing the token.
func CacheKey(credential string) string {
	sum := blake2b.Sum256([]byte(credential))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}
