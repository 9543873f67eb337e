package retrieval

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	cacheNumCounters = 1e5
	cacheMaxCost     = 1 << 24
	cacheBufferItems = 64
	cacheTTL         = 5 * time.Minute
)

// RankCache holds ranked results keyed by (query, k, floor, index
// generation). Because the generation is part of the key, an index
// mutation makes every prior entry unreachable; stale entries just age
// out under the TTL.
type RankCache struct {
	cache *ristretto.Cache
}

// NewRankCache creates the ranked-result cache.
func NewRankCache() (*RankCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RankCache{cache: cache}, nil
}

func (c *RankCache) get(key string) ([]Match, bool) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	matches, ok := value.([]Match)
	return matches, ok
}

func (c *RankCache) set(key string, matches []Match) {
	cost := int64(len(matches) + 1)
	c.cache.SetWithTTL(key, matches, cost, cacheTTL)
}

// Close releases the cache.
func (c *RankCache) Close() {
	c.cache.Close()
}
