package session

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// SummaryCache is a bounded LRU over session summaries, used to resolve
// search hits without re-querying storage for every result. Entries are
// invalidated whenever the session changes.
type SummaryCache struct {
	cache *lru.Cache[string, *Summary]
}

const defaultSummaryCacheSize = 512

// NewSummaryCache creates a cache holding up to size summaries. A size
// of zero or less uses the default.
func NewSummaryCache(size int) (*SummaryCache, error) {
	if size <= 0 {
		size = defaultSummaryCacheSize
	}
	cache, err := lru.New[string, *Summary](size)
	if err != nil {
		return nil, err
	}
	return &SummaryCache{cache: cache}, nil
}

// Get returns the cached summary for a session id, if present.
func (c *SummaryCache) Get(id string) (*Summary, bool) {
	return c.cache.Get(id)
}

// Put stores a summary.
func (c *SummaryCache) Put(summary *Summary) {
	c.cache.Add(summary.ID, summary)
}

// Invalidate drops the entry for a session id.
func (c *SummaryCache) Invalidate(id string) {
	c.cache.Remove(id)
}

// Purge drops every entry.
func (c *SummaryCache) Purge() {
	c.cache.Purge()
}
