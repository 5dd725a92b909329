package version

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/opsorch/adminlog/metrics"
)

const defaultsKey = "defaults"

// Cached remembers a provider's answer for a TTL. Failures are not cached.
type Cached struct {
	next  Provider
	cache *cache.Cache
}

// NewCached wraps next. A non-positive ttl disables caching.
func NewCached(next Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return next
	}
	return &Cached{next: next, cache: cache.New(ttl, 2*ttl)}
}

// DefaultVersionIDs implements Provider.
func (c *Cached) DefaultVersionIDs(ctx context.Context) ([]string, error) {
	if v, ok := c.cache.Get(defaultsKey); ok {
		metrics.VersionResolutions.WithLabelValues("cache", "success").Inc()
		return slices.Clone(v.([]string)), nil
	}
	versions, err := c.next.DefaultVersionIDs(ctx)
	if err != nil {
		metrics.VersionResolutions.WithLabelValues("provider", "error").Inc()
		return nil, err
	}
	metrics.VersionResolutions.WithLabelValues("provider", "success").Inc()
	c.cache.SetDefault(defaultsKey, slices.Clone(versions))
	return versions, nil
}

// Close releases the wrapped provider when it holds resources.
func (c *Cached) Close() error {
	if closer, ok := c.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Invalidate drops the cached list.
func (c *Cached) Invalidate() {
	c.cache.Delete(defaultsKey)
}
