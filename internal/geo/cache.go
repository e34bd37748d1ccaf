package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/tripwit/internal/domain"
)

// DefaultCacheTTL is how long a cached search result is served.
const DefaultCacheTTL = 24 * time.Hour

// cache is the subset of redis.Cmdable the geocoder needs. *redis.Client
// satisfies it.
type cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedGeocoder serves Search results from Redis and falls through to the
// wrapped Geocoder on a miss. Redis failures are logged and treated as a
// miss; they never fail a lookup.
type CachedGeocoder struct {
	next   Geocoder
	cache  cache
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

// NewCachedGeocoder wraps next with a Redis cache. ttl <= 0 selects
// DefaultCacheTTL.
func NewCachedGeocoder(next Geocoder, rdb cache, ttl time.Duration, log *slog.Logger) *CachedGeocoder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedGeocoder{next: next, cache: rdb, ttl: ttl, prefix: "tripwit:geo:search", log: log}
}

// Search returns the cached result for query and bias, or asks the wrapped
// geocoder and caches a non-empty answer.
func (c *CachedGeocoder) Search(ctx context.Context, query string, bias *Region) ([]Place, error) {
	key := c.key(query, bias)

	raw, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var places []Place
		if err := json.Unmarshal(raw, &places); err == nil {
			return places, nil
		}
		c.log.WarnContext(ctx, "geocode cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.WarnContext(ctx, "geocode cache read failed", "key", key, "error", err)
	}

	places, err := c.next.Search(ctx, query, bias)
	if err != nil {
		return nil, fmt.Errorf("geo.CachedGeocoder.Search: %w", err)
	}
	if len(places) == 0 {
		return places, nil
	}
	data, err := json.Marshal(places)
	if err != nil {
		return places, nil
	}
	if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "geocode cache write failed", "key", key, "error", err)
	}
	return places, nil
}

// Reverse is not cached.
func (c *CachedGeocoder) Reverse(ctx context.Context, at domain.Coordinate) (string, error) {
	addr, err := c.next.Reverse(ctx, at)
	if err != nil {
		return "", fmt.Errorf("geo.CachedGeocoder.Reverse: %w", err)
	}
	return addr, nil
}

// key normalises the query so trivially different spellings share an entry.
// The bias is rounded to roughly 1 km.
func (c *CachedGeocoder) key(query string, bias *Region) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if bias == nil {
		return c.prefix + ":" + q
	}
	return fmt.Sprintf("%s:%s@%.2f,%.2f", c.prefix, q, bias.Center.Latitude, bias.Center.Longitude)
}
