package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/viterin/vek/vek32"

	"github.com/adalundhe/scriptorium/core/errors"
)

const (
	// DefaultTopK and DefaultMinSimilarity apply when a caller passes
	// zero values.
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.30
)

// Ranker scores the knowledge base against query vectors. Ordering is
// fully deterministic: descending score, ties broken by ascending item
// id, and only items at or above the similarity floor are returned.
type Ranker struct {
	store    *IndexStore
	embedder Embedder
	cache    *RankCache
}

// NewRanker creates a ranker over the given store. cache may be nil to
// disable result caching.
func NewRanker(store *IndexStore, embedder Embedder, cache *RankCache) *Ranker {
	return &Ranker{store: store, embedder: embedder, cache: cache}
}

// Rank embeds the query and returns the top k matches at or above
// minSimilarity. An empty result is a valid answer, not an error.
func (r *Ranker) Rank(ctx context.Context, query string, k int, minSimilarity float64) ([]Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	items, generation := r.store.Snapshot()
	if len(items) == 0 {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("q:%s|k:%d|m:%.4f|g:%d", query, k, minSimilarity, generation)
	if r.cache != nil {
		if matches, ok := r.cache.get(cacheKey); ok {
			return matches, nil
		}
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	matches := rankAgainst(vectors[0], items, k, minSimilarity, "")
	if r.cache != nil {
		r.cache.set(cacheKey, matches)
	}
	return matches, nil
}

// SimilarTo ranks the knowledge base against an already-indexed item's
// vector, excluding the item itself.
func (r *Ranker) SimilarTo(ctx context.Context, itemID string, k int, minSimilarity float64) ([]Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	item, ok := r.store.Get(itemID)
	if !ok {
		return nil, errors.New(errors.ClassInvalidRequest, fmt.Sprintf("unknown item %s", itemID), nil)
	}
	if len(item.Embedding) == 0 {
		return nil, errors.New(errors.ClassInvalidRequest, fmt.Sprintf("item %s has no embedding", itemID), nil)
	}

	items, _ := r.store.Snapshot()
	return rankAgainst(item.Embedding, items, k, minSimilarity, itemID), nil
}

func rankAgainst(query []float32, items []*Item, k int, minSimilarity float64, excludeID string) []Match {
	queryNorm := math.Sqrt(float64(vek32.Dot(query, query)))
	if queryNorm == 0 {
		return nil
	}

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		if item.ID == excludeID || len(item.Embedding) != len(query) {
			continue
		}
		score := cosine(query, queryNorm, item.Embedding)
		if score >= minSimilarity {
			matches = append(matches, Match{Item: item, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Item.ID < matches[j].Item.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func cosine(query []float32, queryNorm float64, vec []float32) float64 {
	norm := math.Sqrt(float64(vek32.Dot(vec, vec)))
	if norm == 0 {
		return 0
	}
	return float64(vek32.Dot(query, vec)) / (queryNorm * norm)
}
