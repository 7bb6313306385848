package geocode

import (
	"context"

	"github.com/rs/zerolog"
)

// Cached serves addresses from an AddressCache before asking the wrapped Geocoder.
// Cache failures are logged and never fail a lookup.
type Cached struct {
	next   Geocoder
	cache  AddressCache
	logger zerolog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Geocoder, cache AddressCache, logger zerolog.Logger) *Cached {
	return &Cached{next: next, cache: cache, logger: logger}
}

// Name implements Geocoder.
func (c *Cached) Name() string {
	return "cached-" + c.next.Name()
}

// Reverse implements Geocoder.
func (c *Cached) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	key := CacheKey(lat, lon)

	addr, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Geocode cache lookup failed")
	} else if ok {
		return addr, nil
	}

	addr, err = c.next.Reverse(ctx, lat, lon)
	if err != nil {
		return Address{}, err
	}

	if err := c.cache.Put(ctx, key, addr); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to store geocode cache entry")
	}
	return addr, nil
}
