// Package retrieval ranks the script knowledge base against user
// queries by embedding similarity. Items are indexed with dense vectors
// and ranked with deterministic ordering: descending cosine score, ties
// broken by ascending item id, scores below the floor excluded.
package retrieval

import (
	"time"
)

// Item is one knowledge base entry, typically a curated script with its
// title and description.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Embedding   []float32 `json:"-"`
	EmbeddedAt  time.Time `json:"embedded_at,omitempty"`
}

// embeddingText is what gets vectorized for an item.
func (i *Item) embeddingText() string {
	if i.Description == "" {
		return i.Title
	}
	return i.Title + "\n" + i.Description
}

// Match is a ranked retrieval result.
type Match struct {
	Item  *Item   `json:"item"`
	Score float64 `json:"score"`
}

// Status reports index coverage, exposed so operators can see how much
// of the knowledge base is queryable.
type Status struct {
	TotalItems    int    `json:"total_items"`
	EmbeddedItems int    `json:"embedded_items"`
	Dimensions    int    `json:"dimensions"`
	Model         string `json:"model"`
}
