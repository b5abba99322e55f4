package store

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/biomap-cli/internal/resolve"
)

// DefaultResolverTTL is how long resolver answers stay cached when no TTL
// is configured.
const DefaultResolverTTL = 7 * 24 * time.Hour

// CachedResolver wraps a resolver with a persistent cache. Unknown
// identifiers are cached too. Resolver errors are never cached, and cache
// failures degrade to a direct lookup.
type CachedResolver struct {
	inner resolve.Resolver
	store Store
	name  string
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedResolver decorates inner. name namespaces entries so several
// resolvers can share one store.
func NewCachedResolver(inner resolve.Resolver, s Store, name string, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultResolverTTL
	}
	return &CachedResolver{
		inner: inner,
		store: s,
		name:  name,
		ttl:   ttl,
		log:   zap.L().With(zap.String("component", "resolver_cache"), zap.String("resolver", name)),
	}
}

// Resolve implements resolve.Resolver.
func (c *CachedResolver) Resolve(ctx context.Context, id string) (*resolve.Resolution, error) {
	key := strings.ToUpper(strings.TrimSpace(id))
	if key == "" {
		return nil, nil
	}

	cached, err := c.store.GetCachedResolution(ctx, c.name, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("identifier", key), zap.Error(err))
	} else if cached != nil {
		if !cached.Found {
			return nil, nil
		}
		return &resolve.Resolution{CanonicalID: cached.CanonicalID, Score: cached.Score}, nil
	}

	res, err := c.inner.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := CachedResolution{Resolver: c.name, Identifier: key, Found: res != nil}
	if res != nil {
		entry.CanonicalID = res.CanonicalID
		entry.Score = res.Score
	}
	if err := c.store.SetCachedResolution(ctx, entry, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.String("identifier", key), zap.Error(err))
	}
	return res, nil
}
