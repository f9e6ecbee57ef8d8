package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"memora/internal/embedding"
	"memora/internal/logging"
)

// =============================================================================
// NOTE STORE (SQLite)
// =============================================================================

// Store persists notes in SQLite. Semantic search uses the configured
// embedding engine; without one, semantic search returns no results and
// callers fall through to tag/keyword search.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	engine    embedding.Engine
	vectorExt bool // sqlite-vec available for in-database distance
}

// NewStore opens (creating if necessary) the note database at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.detectVecExtension()

	logging.Notes("note store ready at %s (vec=%v)", path, s.vectorExt)
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		tags       TEXT NOT NULL DEFAULT '[]',
		metadata   TEXT NOT NULL DEFAULT '{}',
		embedding  TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// detectVecExtension probes for sqlite-vec. When present, semantic
// search ranks inside SQLite instead of scanning embeddings in Go.
func (s *Store) detectVecExtension() {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err == nil {
		s.vectorExt = true
		logging.StoreDebug("sqlite-vec %s detected", version)
	}
}

// SetEmbeddingEngine configures the engine used for semantic search.
func (s *Store) SetEmbeddingEngine(engine embedding.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

// Create stores a new note, computing its embedding when an engine is
// configured. Embedding failure degrades to a keyword-only note.
func (s *Store) Create(ctx context.Context, title, content string, tags []string) (*Note, error) {
	now := time.Now()
	note := &Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Tags:      normalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	embJSON := s.embedJSON(ctx, title+"\n"+content)

	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, _ := json.Marshal(note.Tags)
	metaJSON, _ := json.Marshal(map[string]interface{}{})
	_, err := s.db.Exec(
		`INSERT INTO notes (id, title, content, tags, metadata, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.Content, string(tagsJSON), string(metaJSON), embJSON, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store note: %w", err)
	}

	logging.Notes("created note %s (%q, tags=%v)", note.ID, note.Title, note.Tags)
	return note, nil
}

// Update rewrites a note's content and tags and recomputes its
// embedding.
func (s *Store) Update(ctx context.Context, id, title, content string, tags []string) (*Note, error) {
	embJSON := s.embedJSON(ctx, title+"\n"+content)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, _ := json.Marshal(normalizeTags(tags))
	res, err := s.db.Exec(
		`UPDATE notes SET title = ?, content = ?, tags = ?, embedding = ?, updated_at = ? WHERE id = ?`,
		title, content, string(tagsJSON), embJSON, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("note %s not found", id)
	}
	return s.getLocked(id)
}

// Delete removes a note. Deleting an unknown id is an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %s not found", id)
	}
	logging.Notes("deleted note %s", id)
	return nil
}

// GetByID fetches one note.
func (s *Store) GetByID(id string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*Note, error) {
	row := s.db.QueryRow(
		"SELECT id, title, content, tags, metadata, created_at, updated_at FROM notes WHERE id = ?", id)
	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note %s not found", id)
	}
	return note, err
}

// Count returns the number of stored notes.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&n)
	return n, err
}

// embedJSON computes the embedding for text and serializes it, or
// returns a NULL-able empty value when no engine is set or the engine
// fails. Embedding failure is never fatal to a write.
func (s *Store) embedJSON(ctx context.Context, text string) interface{} {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	if engine == nil {
		return nil
	}
	vec, err := engine.Embed(ctx, text)
	if err != nil {
		logging.Get(logging.CategoryNotes).Warn("embedding failed, storing note without vector: %v", err)
		return nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil
	}
	return string(data)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimPrefix(t, "#"))
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// rowScanner abstracts sql.Row and sql.Rows for scanNote.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*Note, error) {
	var note Note
	var tagsJSON, metaJSON string
	if err := row.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &metaJSON,
		&note.CreatedAt, &note.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
		note.Tags = nil
	}
	if metaJSON != "" && metaJSON != "{}" {
		json.Unmarshal([]byte(metaJSON), &note.Metadata)
	}
	return &note, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
