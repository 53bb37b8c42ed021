package geo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/services/cache"
)

const cacheNamespace = "geocode"

// CachedGeocoder remembers successful lookups so reruns do not hit the
// providers again.
type CachedGeocoder struct {
	inner Geocoder
	cache cache.CacheService
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedGeocoder wraps inner with cache
func NewCachedGeocoder(inner Geocoder, c cache.CacheService, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		cache: c,
		ttl:   ttl,
		log:   logger.ForCache(),
	}
}

// Name returns the wrapped provider name
func (g *CachedGeocoder) Name() string {
	return g.inner.Name()
}

// Geocode answers from the cache when possible. Cache failures only
// degrade to an uncached lookup.
func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (*listing.Coordinates, error) {
	key := cache.Key(cacheNamespace, address)

	if data, err := g.cache.Get(key); err == nil {
		var coords listing.Coordinates
		if jsonErr := json.Unmarshal(data, &coords); jsonErr == nil {
			g.log.Debug().Str("address", address).Msg("Geocode cache hit")
			return &coords, nil
		}
	} else if !stderrors.Is(err, cache.ErrCacheMiss) {
		g.log.Warn().Err(err).Msg("Geocode cache unavailable")
	}

	coords, err := g.inner.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(coords); jsonErr == nil {
		if setErr := g.cache.Set(key, data, g.ttl); setErr != nil {
			g.log.Warn().Err(setErr).Msg("Failed to cache geocode result")
		}
	}
	return coords, nil
}
