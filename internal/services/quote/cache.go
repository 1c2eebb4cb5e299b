package quote

import (
	"sync"
	"time"

	"github.com/lfmartins/carteira/internal/models"
)

// priceCache holds the latest price per asset for a bounded TTL. A zero TTL
// disables caching entirely.
type priceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	point    models.PricePoint
	cachedAt time.Time
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

// get splits the requested ids into cache hits and misses.
func (c *priceCache) get(assetIDs []string) (map[string]models.PricePoint, []string) {
	hits := make(map[string]models.PricePoint, len(assetIDs))
	if c.ttl <= 0 {
		return hits, assetIDs
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	var misses []string
	for _, id := range assetIDs {
		e, ok := c.entries[id]
		if !ok || now.Sub(e.cachedAt) > c.ttl {
			misses = append(misses, id)
			continue
		}
		hits[id] = e.point
	}
	return hits, misses
}

func (c *priceCache) put(points map[string]models.PricePoint) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for id, pp := range points {
		c.entries[id] = cacheEntry{point: pp, cachedAt: now}
	}
}

func (c *priceCache) invalidate(assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, assetID)
}
