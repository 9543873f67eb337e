package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/adalundhe/scriptorium/core/errors"
	"github.com/adalundhe/scriptorium/core/retrieval"
	"github.com/adalundhe/scriptorium/core/session"
)

// GetHistory returns the session with its full transcript.
func (c *Coordinator) GetHistory(ctx context.Context, sessionID string) (*session.Session, error) {
	return c.store.Get(ctx, sessionID)
}

// ListSessions returns summaries ordered by most recent activity.
func (c *Coordinator) ListSessions(ctx context.Context) ([]*session.Summary, error) {
	return c.store.List(ctx)
}

// SetCategory labels a session and refreshes its search document so
// category filters see the change immediately.
func (c *Coordinator) SetCategory(ctx context.Context, sessionID, category string) error {
	if err := c.store.SetCategory(ctx, sessionID, category); err != nil {
		return err
	}
	c.summaries.Invalidate(sessionID)
	c.reindex(ctx, sessionID)
	return nil
}

// DeleteSession removes a session everywhere it is tracked. Deleting an
// unknown session succeeds. The delete takes the session's turn lock,
// so it never races a turn mid-persist.
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	release, err := c.locks.acquire(ctx, sessionID, BusyWait)
	if err != nil {
		return err
	}
	defer release()

	if err := c.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	c.summaries.Invalidate(sessionID)
	if c.search != nil {
		if err := c.search.Remove(sessionID); err != nil {
			c.logger.Warn("session not removed from search index",
				"session_id", sessionID, "error", err)
		}
	}
	return nil
}

// SearchHistory runs a keyword search over past sessions and resolves
// the hits into summaries. Hits whose session vanished between index
// and store are skipped.
func (c *Coordinator) SearchHistory(ctx context.Context, query session.SearchQuery) ([]*session.Summary, error) {
	if c.search == nil {
		return nil, nil
	}

	hits, err := c.search.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	summaries := make([]*session.Summary, 0, len(hits))
	for _, hit := range hits {
		summary, ok := c.summaries.Get(hit.SessionID)
		if !ok {
			sess, err := c.store.Get(ctx, hit.SessionID)
			if err != nil {
				continue
			}
			summary = session.SummaryOf(sess)
			c.summaries.Put(summary)
		}
		resolved := *summary
		resolved.Score = hit.Score
		summaries = append(summaries, &resolved)
	}
	return summaries, nil
}

// PruneIdle removes sessions idle past the cutoff from the store and
// the search index.
func (c *Coordinator) PruneIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	pruned, err := c.store.PruneIdle(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	for _, id := range pruned {
		c.summaries.Invalidate(id)
		if c.search != nil {
			if err := c.search.Remove(id); err != nil {
				c.logger.Warn("pruned session not removed from search index",
					"session_id", id, "error", err)
			}
		}
	}
	return len(pruned), nil
}

// EmbeddingStatus reports knowledge base index coverage.
func (c *Coordinator) EmbeddingStatus() retrieval.Status {
	if c.index == nil {
		return retrieval.Status{}
	}
	return c.index.Status()
}

// SimilarScripts ranks the knowledge base against an indexed item.
func (c *Coordinator) SimilarScripts(ctx context.Context, itemID string, k int, minSimilarity float64) ([]retrieval.Match, error) {
	if c.ranker == nil {
		return nil, nil
	}
	return c.ranker.SimilarTo(ctx, itemID, k, minSimilarity)
}

// SearchScripts ranks the knowledge base against a free-text query,
// the same ranking a grounded turn uses.
func (c *Coordinator) SearchScripts(ctx context.Context, query string, k int, minSimilarity float64) ([]retrieval.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ClassInvalidRequest, "search query is empty", nil)
	}
	if c.ranker == nil {
		return nil, nil
	}
	return c.ranker.Rank(ctx, query, k, minSimilarity)
}
