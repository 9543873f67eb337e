package session

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/scriptorium/core/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "assistant")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	loaded, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, "assistant", loaded.AgentType)
	assert.Empty(t, loaded.Messages)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestSQLiteStore_GetUnknownID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSessionNotFound))
}

func TestSQLiteStore_AppendPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "assistant")
	require.NoError(t, err)

	for turn := 0; turn < 3; turn++ {
		err := store.AppendMessages(ctx, sess.ID,
			Message{Role: RoleUser, Content: "question"},
			Message{Role: RoleAssistant, Content: "answer"},
		)
		require.NoError(t, err)
	}

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 6)
	for i, msg := range loaded.Messages {
		if i%2 == 0 {
			assert.Equal(t, RoleUser, msg.Role)
		} else {
			assert.Equal(t, RoleAssistant, msg.Role)
		}
		assert.NotEmpty(t, msg.ID)
	}
}

func TestSQLiteStore_AppendToUnknownSession(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendMessages(context.Background(), "missing",
		Message{Role: RoleUser, Content: "hello"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSessionNotFound))
}

func TestSQLiteStore_AppendRefreshesLastActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "assistant")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.AppendMessages(ctx, sess.ID,
		Message{Role: RoleUser, Content: "hi"}))

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.LastActivityAt.After(sess.LastActivityAt))
}

func TestSQLiteStore_SetCategoryAndThreadRef(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "assistant")
	require.NoError(t, err)

	require.NoError(t, store.SetCategory(ctx, sess.ID, "automation"))
	require.NoError(t, store.SetThreadRef(ctx, sess.ID, "resp_42"))

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "automation", loaded.Category)
	assert.Equal(t, "resp_42", loaded.ThreadRef)

	err = store.SetCategory(ctx, "missing", "automation")
	assert.True(t, stderrors.Is(err, errors.ErrSessionNotFound))
}

func TestSQLiteStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "assistant")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, sess.ID,
		Message{Role: RoleUser, Content: "hi"}))

	require.NoError(t, store.Delete(ctx, sess.ID))

	_, err = store.Get(ctx, sess.ID)
	assert.True(t, stderrors.Is(err, errors.ErrSessionNotFound))

	// Second delete of the same id succeeds quietly.
	require.NoError(t, store.Delete(ctx, sess.ID))
	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestSQLiteStore_ListOrdersByRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "assistant")
	require.NoError(t, err)
	second, err := store.Create(ctx, "reviewer")
	require.NoError(t, err)

	require.NoError(t, store.AppendMessages(ctx, second.ID,
		Message{Role: RoleUser, Content: "review this script please"}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.AppendMessages(ctx, first.ID,
		Message{Role: RoleUser, Content: "how do I read a csv"}))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.Equal(t, second.ID, summaries[1].ID)
	assert.Equal(t, 1, summaries[0].MessageCount)
	assert.Equal(t, "how do I read a csv", summaries[0].Preview)
}

func TestSQLiteStore_PruneIdle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale, err := store.Create(ctx, "assistant")
	require.NoError(t, err)
	fresh, err := store.Create(ctx, "assistant")
	require.NoError(t, err)

	// Backdate the stale session's activity directly.
	_, err = store.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC().Add(-48*time.Hour)), stale.ID)
	require.NoError(t, err)

	pruned, err := store.PruneIdle(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, pruned)

	_, err = store.Get(ctx, stale.ID)
	assert.True(t, stderrors.Is(err, errors.ErrSessionNotFound))
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	sess, err := store.Create(ctx, "generator")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, sess.ID,
		Message{Role: RoleUser, Content: "generate a backup script"},
		Message{Role: RoleAssistant, Content: "here it is"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "generator", loaded.AgentType)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "generate a backup script", loaded.Messages[0].Content)
}
