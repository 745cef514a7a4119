package geography

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"civictrust/pkg/domain"
	"civictrust/pkg/platform/circuit"
)

const (
	defaultCacheTTL = 24 * time.Hour
	cacheKeyPrefix  = "civictrust:region:"
)

// CachedResolver memoizes another resolver in Redis. Redis is optional:
// when it fails the breaker opens and lookups go straight to the inner
// resolver until Redis recovers.
type CachedResolver struct {
	next    Resolver
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type CacheOption func(*CachedResolver)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedResolver) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithBreaker(b *circuit.Breaker) CacheOption {
	return func(c *CachedResolver) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedResolver) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCachedResolver(next Resolver, client redis.Cmdable, opts ...CacheOption) *CachedResolver {
	c := &CachedResolver{
		next:    next,
		client:  client,
		ttl:     defaultCacheTTL,
		breaker: circuit.New("region-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedResolver) ResolveRegion(ctx context.Context, anchor Anchor) (domain.RegionSlug, error) {
	key := cacheKey(anchor)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		c.recordSuccess(ctx)
		if slug, perr := domain.ParseRegionSlug(cached); perr == nil {
			return slug, nil
		}
		c.logger.WarnContext(ctx, "discarding malformed cached region", "key", key)
	case errors.Is(err, redis.Nil):
		c.recordSuccess(ctx)
	default:
		c.recordFailure(ctx, err)
	}

	slug, err := c.next.ResolveRegion(ctx, anchor)
	if err != nil {
		return "", err
	}
	if c.breaker.IsOpen() {
		return slug, nil
	}
	if err := c.client.Set(ctx, key, string(slug), c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
	}
	return slug, nil
}

func (c *CachedResolver) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "region cache circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *CachedResolver) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "region cache circuit opened, resolving without cache",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}

func cacheKey(a Anchor) string {
	return cacheKeyPrefix + strings.ToLower(strings.TrimSpace(a.Country)) + "|" + strings.ToLower(strings.TrimSpace(a.Locality))
}
