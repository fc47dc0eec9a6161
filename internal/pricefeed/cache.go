package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "swap-agent:pricefeed:series:"

// SeriesCache is the subset of a redis client the cache needs.
type SeriesCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedSource keeps daily series in redis. Latest prices always go to the feed.
// Any cache failure falls through to the feed.
type CachedSource struct {
	next  Source
	cache SeriesCache
	ttl   time.Duration
}

func NewCachedSource(next Source, cache SeriesCache, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, cache: cache, ttl: ttl}
}

func (c *CachedSource) LatestPrice(ctx context.Context, id string) (float64, error) {
	return c.next.LatestPrice(ctx, id)
}

type cachedPoint struct {
	At    int64   `json:"t"`
	Price float64 `json:"p"`
}

func (c *CachedSource) DailySeries(ctx context.Context, id string, days int) ([]PricePoint, error) {
	key := fmt.Sprintf("%s%s:%d", keyPrefix, id, days)

	raw, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []cachedPoint
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			out := make([]PricePoint, 0, len(cached))
			for _, p := range cached {
				out = append(out, PricePoint{At: time.UnixMilli(p.At).UTC(), Price: p.Price})
			}
			return out, nil
		}
		log.Warn("price series cache entry unreadable", "key", key)
	case err != redis.Nil:
		log.Warn("price series cache get failed", "key", key, "error", err)
	}

	points, err := c.next.DailySeries(ctx, id, days)
	if err != nil {
		return nil, err
	}

	enc := make([]cachedPoint, 0, len(points))
	for _, p := range points {
		enc = append(enc, cachedPoint{At: p.At.UnixMilli(), Price: p.Price})
	}
	if b, jerr := json.Marshal(enc); jerr == nil {
		if serr := c.cache.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			log.Warn("price series cache set failed", "key", key, "error", serr)
		}
	}
	return points, nil
}
