package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/adalundhe/scriptorium/core/errors"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	thread_ref TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	last_activity_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (session_id, seq),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity_at);
`

// SQLiteStore is the durable Store implementation. All multi-row
// operations run in a transaction so a turn's (user, assistant) pair is
// either fully persisted or not at all.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the session database at path.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "open session db", err)
	}

	// Single writer: sqlite serializes writes anyway, and a capped pool
	// avoids SQLITE_BUSY churn under concurrent turns.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New(errors.ClassStorage, "configure session db", err)
		}
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, errors.New(errors.ClassStorage, "create session schema", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Create generates a fresh session with a unique, never-reused id.
func (s *SQLiteStore) Create(ctx context.Context, agentType string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:             uuid.New().String(),
		AgentType:      agentType,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, agent_type, category, thread_ref, created_at, last_activity_at)
		 VALUES (?, ?, '', '', ?, ?)`,
		sess.ID, sess.AgentType, formatTime(now), formatTime(now))
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "create session", err)
	}

	return sess, nil
}

// Get loads a session with its full ordered transcript.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_type, category, thread_ref, created_at, last_activity_at
		 FROM sessions WHERE id = ?`, id)

	var sess Session
	var createdAt, lastActivity string
	err := row.Scan(&sess.ID, &sess.AgentType, &sess.Category, &sess.ThreadRef, &createdAt, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ClassSessionNotFound, fmt.Sprintf("session %s", id), nil)
	}
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "load session", err)
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.LastActivityAt = parseTime(lastActivity)

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Messages = messages

	return &sess, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages
		 WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "load messages", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, errors.New(errors.ClassStorage, "scan message", err)
		}
		msg.Timestamp = parseTime(createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessages appends the given messages as one atomic unit and
// refreshes last_activity_at.
func (s *SQLiteStore) AppendMessages(ctx context.Context, id string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ClassStorage, "begin append", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return errors.New(errors.ClassSessionNotFound, fmt.Sprintf("session %s", id), nil)
	}
	if err != nil {
		return errors.New(errors.ClassStorage, "check session", err)
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM messages WHERE session_id = ?`, id).Scan(&maxSeq); err != nil {
		return errors.New(errors.ClassStorage, "next seq", err)
	}

	seq := maxSeq.Int64
	now := time.Now().UTC()
	for i := range messages {
		msg := &messages[i]
		seq++
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, seq, id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, seq, msg.ID, string(msg.Role), msg.Content, formatTime(msg.Timestamp)); err != nil {
			return errors.New(errors.ClassStorage, "insert message", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE id = ?`, formatTime(now), id); err != nil {
		return errors.New(errors.ClassStorage, "touch session", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ClassStorage, "commit append", err)
	}
	return nil
}

// SetCategory updates the user-assigned category label.
func (s *SQLiteStore) SetCategory(ctx context.Context, id, category string) error {
	return s.updateColumn(ctx, id, "category", category)
}

// SetThreadRef updates the provider-side thread handle.
func (s *SQLiteStore) SetThreadRef(ctx context.Context, id, threadRef string) error {
	return s.updateColumn(ctx, id, "thread_ref", threadRef)
}

func (s *SQLiteStore) updateColumn(ctx context.Context, id, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE sessions SET %s = ? WHERE id = ?`, column), value, id)
	if err != nil {
		return errors.New(errors.ClassStorage, "update "+column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.New(errors.ClassStorage, "update "+column, err)
	}
	if affected == 0 {
		return errors.New(errors.ClassSessionNotFound, fmt.Sprintf("session %s", id), nil)
	}
	return nil
}

// Delete removes the session and its transcript. Unknown ids are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ClassStorage, "begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return errors.New(errors.ClassStorage, "delete messages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errors.New(errors.ClassStorage, "delete session", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ClassStorage, "commit delete", err)
	}
	return nil
}

// List returns summaries ordered by most recent activity.
func (s *SQLiteStore) List(ctx context.Context) ([]*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.agent_type, s.category, s.created_at, s.last_activity_at,
		        COUNT(m.seq),
		        COALESCE((SELECT content FROM messages
		                  WHERE session_id = s.id AND role = 'user'
		                  ORDER BY seq ASC LIMIT 1), '')
		 FROM sessions s
		 LEFT JOIN messages m ON m.session_id = s.id
		 GROUP BY s.id
		 ORDER BY s.last_activity_at DESC`)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "list sessions", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		var sum Summary
		var createdAt, lastActivity, firstUser string
		if err := rows.Scan(&sum.ID, &sum.AgentType, &sum.Category,
			&createdAt, &lastActivity, &sum.MessageCount, &firstUser); err != nil {
			return nil, errors.New(errors.ClassStorage, "scan summary", err)
		}
		sum.CreatedAt = parseTime(createdAt)
		sum.LastActivityAt = parseTime(lastActivity)
		if len(firstUser) > previewLength {
			firstUser = firstUser[:previewLength]
		}
		sum.Preview = firstUser
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

// PruneIdle deletes sessions idle for longer than the cutoff and
// returns their ids so callers can clean up derived state.
func (s *SQLiteStore) PruneIdle(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := formatTime(time.Now().UTC().Add(-olderThan))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "begin prune", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM sessions WHERE last_activity_at < ?`, cutoff)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "find idle sessions", err)
	}
	var pruned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.New(errors.ClassStorage, "scan idle session", err)
		}
		pruned = append(pruned, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ClassStorage, "find idle sessions", err)
	}
	if len(pruned) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN
		 (SELECT id FROM sessions WHERE last_activity_at < ?)`, cutoff); err != nil {
		return nil, errors.New(errors.ClassStorage, "prune messages", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_activity_at < ?`, cutoff); err != nil {
		return nil, errors.New(errors.ClassStorage, "prune sessions", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.New(errors.ClassStorage, "commit prune", err)
	}

	s.logger.Info("pruned idle sessions", "count", len(pruned), "older_than", olderThan)
	return pruned, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so stored timestamps compare
// chronologically as strings (RFC3339Nano trims trailing zeros and
// breaks that).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
