package session

import (
	"context"
	"time"
)

// Store is the durable session persistence contract. Implementations
// must make AppendMessages atomic with respect to concurrent appends to
// the same session, and Delete idempotent.
type Store interface {
	// Create generates a fresh session with a unique id. It fails only on
	// storage unavailability.
	Create(ctx context.Context, agentType string) (*Session, error)

	// Get loads a session and its full transcript. Returns a
	// session_not_found classed error for unknown ids.
	Get(ctx context.Context, id string) (*Session, error)

	// AppendMessages appends messages to the transcript in order, as one
	// atomic unit, and refreshes last_activity_at. Returns
	// session_not_found for unknown ids.
	AppendMessages(ctx context.Context, id string, messages ...Message) error

	// SetCategory updates the user-assigned category label.
	SetCategory(ctx context.Context, id, category string) error

	// SetThreadRef updates the provider-side thread handle.
	SetThreadRef(ctx context.Context, id, threadRef string) error

	// Delete removes the session and its messages. Deleting an unknown or
	// already-deleted session is not an error.
	Delete(ctx context.Context, id string) error

	// List returns summaries of all sessions, most recent activity first.
	List(ctx context.Context) ([]*Summary, error)

	// PruneIdle deletes sessions whose last activity is older than the
	// cutoff and returns the ids that were removed. Nothing calls this
	// automatically; it exists for operators.
	PruneIdle(ctx context.Context, olderThan time.Duration) ([]string, error)

	// Close releases the underlying storage.
	Close() error
}
