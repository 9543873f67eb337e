package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adalundhe/scriptorium/core/errors"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	embedding BLOB,
	embedded_at TEXT NOT NULL DEFAULT ''
);
`

// IndexStore persists knowledge base items and their embeddings, with a
// full in-memory mirror for scoring. Ranking never touches disk.
type IndexStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger

	mu    sync.RWMutex
	items map[string]*Item

	// generation increments on every mutation so ranked-result caches
	// can key on it instead of chasing invalidation events.
	generation uint64
}

// NewIndexStore opens the index database and loads all items.
func NewIndexStore(path string, embedder Embedder, logger *slog.Logger) (*IndexStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.ClassStorage, "open index db", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New(errors.ClassStorage, "configure index db", err)
		}
	}

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, errors.New(errors.ClassStorage, "create index schema", err)
	}

	store := &IndexStore{
		db:       db,
		embedder: embedder,
		logger:   logger,
		items:    make(map[string]*Item),
	}
	if err := store.loadAll(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("retrieval index loaded", "items", len(store.items))
	return store, nil
}

func (s *IndexStore) loadAll() error {
	rows, err := s.db.Query(
		`SELECT id, title, description, category, embedding, embedded_at FROM items`)
	if err != nil {
		return errors.New(errors.ClassStorage, "load items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		var blob []byte
		var embeddedAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.Description,
			&item.Category, &blob, &embeddedAt); err != nil {
			return errors.New(errors.ClassStorage, "scan item", err)
		}
		item.Embedding = decodeVector(blob)
		if embeddedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, embeddedAt); err == nil {
				item.EmbeddedAt = t
			}
		}
		s.items[item.ID] = &item
	}
	return rows.Err()
}

// Upsert embeds and stores the given items. An existing id is fully
// replaced, including its vector: there is never more than one entry
// per id. The batch is embedded in a single call.
func (s *IndexStore) Upsert(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i := range items {
		texts[i] = items[i].embeddingText()
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ClassStorage, "begin upsert", err)
	}
	defer tx.Rollback()

	for i := range items {
		items[i].Embedding = vectors[i]
		items[i].EmbeddedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, title, description, category, embedding, embedded_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   title = excluded.title,
			   description = excluded.description,
			   category = excluded.category,
			   embedding = excluded.embedding,
			   embedded_at = excluded.embedded_at`,
			items[i].ID, items[i].Title, items[i].Description, items[i].Category,
			encodeVector(vectors[i]), now.Format(time.RFC3339Nano)); err != nil {
			return errors.New(errors.ClassStorage, "upsert item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ClassStorage, "commit upsert", err)
	}

	s.mu.Lock()
	for i := range items {
		copied := items[i]
		s.items[copied.ID] = &copied
	}
	s.generation++
	s.mu.Unlock()

	return nil
}

// Delete removes an item. Unknown ids are a no-op.
func (s *IndexStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return errors.New(errors.ClassStorage, "delete item", err)
	}

	s.mu.Lock()
	delete(s.items, id)
	s.generation++
	s.mu.Unlock()
	return nil
}

// Get returns the item for an id.
func (s *IndexStore) Get(id string) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Snapshot returns all items plus the generation they were read at.
func (s *IndexStore) Snapshot() ([]*Item, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, s.generation
}

// Status reports index coverage.
func (s *IndexStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	embedded := 0
	for _, item := range s.items {
		if len(item.Embedding) > 0 {
			embedded++
		}
	}
	return Status{
		TotalItems:    len(s.items),
		EmbeddedItems: embedded,
		Dimensions:    s.embedder.Dimensions(),
		Model:         s.embedder.Model(),
	}
}

// Close releases the database handle.
func (s *IndexStore) Close() error {
	return s.db.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
