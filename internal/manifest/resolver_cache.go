package manifest

import (
	"context"
	"time"

	"github.com/originmark/provenance/internal/cache"
	"github.com/originmark/provenance/internal/models"
)

// CachedResolver caches resolved manifest documents by URI so repeated
// verify/proof calls against the same pointer skip the network round trip.
// Fetch and parse failures are never cached.
type CachedResolver struct {
	inner *Resolver
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedResolver wraps inner with the manifest cache. A degraded cache
// falls through to the inner resolver on every call.
func NewCachedResolver(inner *Resolver, c *cache.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, cache: c, ttl: ttl}
}

// Resolve returns the cached document for uri, fetching it on a miss.
func (r *CachedResolver) Resolve(ctx context.Context, uri string) (models.Manifest, error) {
	var doc models.Manifest
	err := r.cache.GetOrSet(ctx, cache.ManifestKey(uri), r.ttl, &doc,
		func(ctx context.Context) (any, error) {
			return r.inner.Resolve(ctx, uri)
		})
	if err != nil {
		return models.Manifest{}, err
	}
	return doc, nil
}
