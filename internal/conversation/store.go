// Package conversation persists conversations and their turns, and
// tracks which conversation is active for the current process.
package conversation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"memora/internal/logging"
)

// Conversation groups a sequence of turns, optionally bound to an
// external room identifier (chat channel, CLI session, etc.).
type Conversation struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Turn is one query/answer exchange.
type Turn struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversationId"`
	Query          string                 `json:"query"`
	Answer         string                 `json:"answer"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Store persists conversations in SQLite and tracks the active one.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	activeID string
}

// NewStore opens (creating if necessary) the conversation tables at
// path. Notes and conversations can share one database file.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		room_id    TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		query           TEXT NOT NULL,
		answer          TEXT NOT NULL,
		metadata        TEXT NOT NULL DEFAULT '{}',
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_room ON conversations(room_id) WHERE room_id != '';
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SwitchRoom makes the conversation for roomID active, creating it if
// it does not exist yet. Returns the conversation and whether it was
// newly created.
func (s *Store) SwitchRoom(roomID string) (*Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conv Conversation
	err := s.db.QueryRow(
		"SELECT id, room_id, started_at FROM conversations WHERE room_id = ?", roomID,
	).Scan(&conv.ID, &conv.RoomID, &conv.StartedAt)

	created := false
	switch {
	case err == sql.ErrNoRows:
		conv = Conversation{ID: uuid.NewString(), RoomID: roomID, StartedAt: time.Now()}
		if _, err := s.db.Exec(
			"INSERT INTO conversations (id, room_id, started_at) VALUES (?, ?, ?)",
			conv.ID, conv.RoomID, conv.StartedAt,
		); err != nil {
			return nil, false, fmt.Errorf("failed to create conversation: %w", err)
		}
		created = true
	case err != nil:
		return nil, false, err
	}

	s.activeID = conv.ID
	logging.Get(logging.CategoryConversation).Debug("active conversation %s (room=%q, created=%v)", conv.ID, roomID, created)
	return &conv, created, nil
}

// EnsureActive returns the active conversation, creating a default one
// when none exists. Returns whether a conversation was created.
func (s *Store) EnsureActive() (*Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		var conv Conversation
		err := s.db.QueryRow(
			"SELECT id, room_id, started_at FROM conversations WHERE id = ?", s.activeID,
		).Scan(&conv.ID, &conv.RoomID, &conv.StartedAt)
		if err == nil {
			return &conv, false, nil
		}
		// Active id points nowhere (cleared conversation); fall through.
		s.activeID = ""
	}

	conv := Conversation{ID: uuid.NewString(), StartedAt: time.Now()}
	if _, err := s.db.Exec(
		"INSERT INTO conversations (id, room_id, started_at) VALUES (?, '', ?)",
		conv.ID, conv.StartedAt,
	); err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.activeID = conv.ID
	return &conv, true, nil
}

// ActiveID returns the active conversation id, or "".
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// AddTurn appends a query/answer pair to a conversation.
func (s *Store) AddTurn(conversationID, query, answer string, metadata map[string]interface{}) (*Turn, error) {
	turn := &Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Query:          query,
		Answer:         answer,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON := "{}"
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			metaJSON = string(data)
		}
	}
	_, err := s.db.Exec(
		"INSERT INTO turns (id, conversation_id, query, answer, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		turn.ID, turn.ConversationID, turn.Query, turn.Answer, metaJSON, turn.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store turn: %w", err)
	}
	return turn, nil
}

// RecentTurns returns the last limit turns of a conversation in
// chronological order.
func (s *Store) RecentTurns(conversationID string, limit int) ([]*Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, conversation_id, query, answer, metadata, created_at
		 FROM turns WHERE conversation_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var t Turn
		var metaJSON string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Query, &t.Answer, &metaJSON, &t.CreatedAt); err != nil {
			continue
		}
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
				logging.StoreDebug("bad turn metadata for %s: %v", t.ID, err)
			}
		}
		turns = append(turns, &t)
	}
	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, rows.Err()
}

// FormatHistory renders recent turns as prompt-ready text. Never
// returns an error: on any failure the history is simply empty.
func (s *Store) FormatHistory(conversationID string, limit int) string {
	turns, err := s.RecentTurns(conversationID, limit)
	if err != nil {
		logging.Get(logging.CategoryConversation).Debug("history fetch failed: %v", err)
		return ""
	}
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Query, t.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clear deletes a conversation and its turns. The active id is reset if
// it pointed at the cleared conversation.
func (s *Store) Clear(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM turns WHERE conversation_id = ?", conversationID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", conversationID); err != nil {
		return err
	}
	if s.activeID == conversationID {
		s.activeID = ""
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
