package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	index, err := NewMemorySearchIndex(nil)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	return index
}

func indexedSession(id, category, agentType string, lastActivity time.Time, contents ...string) *Session {
	sess := &Session{
		ID:             id,
		AgentType:      agentType,
		Category:       category,
		LastActivityAt: lastActivity,
	}
	for i, content := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		sess.Messages = append(sess.Messages, Message{Role: role, Content: content})
	}
	return sess
}

func TestSearchIndex_KeywordMatch(t *testing.T) {
	index := newTestIndex(t)
	now := time.Now()

	require.NoError(t, index.Index(indexedSession("s1", "", "assistant", now,
		"how do I parse json in powershell", "use ConvertFrom-Json")))
	require.NoError(t, index.Index(indexedSession("s2", "", "assistant", now,
		"schedule a task", "use Register-ScheduledTask")))

	hits, err := index.Search(context.Background(), SearchQuery{Text: "json"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].SessionID)
}

func TestSearchIndex_CategoryFilterIsExact(t *testing.T) {
	index := newTestIndex(t)
	now := time.Now()

	require.NoError(t, index.Index(indexedSession("s1", "file-management", "assistant", now,
		"copy files between shares")))
	require.NoError(t, index.Index(indexedSession("s2", "file-management-legacy", "assistant", now,
		"copy files with robocopy")))
	require.NoError(t, index.Index(indexedSession("s3", "networking", "assistant", now,
		"copy files over sftp")))

	hits, err := index.Search(context.Background(), SearchQuery{
		Text:     "copy",
		Category: "file-management",
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].SessionID)
}

func TestSearchIndex_AgentTypeFilter(t *testing.T) {
	index := newTestIndex(t)
	now := time.Now()

	require.NoError(t, index.Index(indexedSession("s1", "", "reviewer", now,
		"audit this deployment script")))
	require.NoError(t, index.Index(indexedSession("s2", "", "generator", now,
		"write a deployment script")))

	hits, err := index.Search(context.Background(), SearchQuery{
		Text:      "deployment",
		AgentType: "reviewer",
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].SessionID)
}

func TestSearchIndex_RecencyOrderIsDefault(t *testing.T) {
	index := newTestIndex(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, index.Index(indexedSession("old", "", "assistant", base,
		"rotate log files")))
	require.NoError(t, index.Index(indexedSession("newer", "", "assistant", base.Add(time.Hour),
		"rotate certificates")))
	require.NoError(t, index.Index(indexedSession("newest", "", "assistant", base.Add(2*time.Hour),
		"rotate credentials")))

	hits, err := index.Search(context.Background(), SearchQuery{Text: "rotate"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "newest", hits[0].SessionID)
	assert.Equal(t, "newer", hits[1].SessionID)
	assert.Equal(t, "old", hits[2].SessionID)
}

func TestSearchIndex_EmptyQueryListsAll(t *testing.T) {
	index := newTestIndex(t)
	now := time.Now()

	require.NoError(t, index.Index(indexedSession("s1", "", "assistant", now, "alpha")))
	require.NoError(t, index.Index(indexedSession("s2", "", "assistant", now.Add(time.Minute), "beta")))

	hits, err := index.Search(context.Background(), SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchIndex_ReindexReplacesDocument(t *testing.T) {
	index := newTestIndex(t)
	now := time.Now()

	sess := indexedSession("s1", "", "assistant", now, "talk about kubernetes")
	require.NoError(t, index.Index(sess))

	sess.Category = "containers"
	sess.Messages = append(sess.Messages, Message{Role: RoleAssistant, Content: "sure"})
	require.NoError(t, index.Index(sess))

	hits, err := index.Search(context.Background(), SearchQuery{Category: "containers"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].SessionID)
}

func TestSearchIndex_RemoveUnknownIsNoOp(t *testing.T) {
	index := newTestIndex(t)
	assert.NoError(t, index.Remove("never-indexed"))
}

func TestSearchIndex_LimitCapsResults(t *testing.T) {
	index := newTestIndex(t)
	base := time.Now()

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, index.Index(indexedSession(id, "", "assistant",
			base.Add(time.Duration(i)*time.Minute), "shared keyword")))
	}

	hits, err := index.Search(context.Background(), SearchQuery{Text: "shared", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSummaryCache(t *testing.T) {
	cache, err := NewSummaryCache(2)
	require.NoError(t, err)

	cache.Put(&Summary{ID: "s1", Preview: "one"})
	cache.Put(&Summary{ID: "s2", Preview: "two"})

	got, ok := cache.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "one", got.Preview)

	cache.Invalidate("s1")
	_, ok = cache.Get("s1")
	assert.False(t, ok)

	cache.Put(&Summary{ID: "s3"})
	cache.Put(&Summary{ID: "s4"})
	cache.Put(&Summary{ID: "s5"})
	_, ok = cache.Get("s2")
	assert.False(t, ok)
}
