package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"memora/internal/embedding"
	"memora/internal/logging"
)

// =============================================================================
// SEARCH MODES
// =============================================================================
//
// Four search modes back the pipeline's retrieval fallback chain:
// semantic (embedding cosine), tag, keyword (LIKE), and recent. Each is
// independent; the fallback ordering lives in the pipeline, not here.

// SearchSemantic ranks notes by cosine similarity to the query
// embedding. Returns nil when no engine is configured. Results below
// minSimilarity are dropped.
func (s *Store) SearchSemantic(ctx context.Context, query string, limit int, minSimilarity float64) ([]*Note, error) {
	s.mu.RLock()
	engine := s.engine
	useVec := s.vectorExt
	s.mu.RUnlock()

	if engine == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if useVec {
		return s.searchSemanticVec(queryVec, limit, minSimilarity)
	}
	return s.searchSemanticScan(queryVec, limit, minSimilarity)
}

// searchSemanticVec ranks inside SQLite via sqlite-vec. Embeddings are
// stored as JSON arrays, which vec_distance_cosine accepts directly.
func (s *Store) searchSemanticVec(queryVec []float32, limit int, minSimilarity float64) ([]*Note, error) {
	queryJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, title, content, tags, metadata, created_at, updated_at,
		        vec_distance_cosine(embedding, ?) AS dist
		 FROM notes WHERE embedding IS NOT NULL
		 ORDER BY dist ASC LIMIT ?`,
		string(queryJSON), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vec search failed: %w", err)
	}
	defer rows.Close()

	var results []*Note
	for rows.Next() {
		var note Note
		var tagsJSON, metaJSON string
		var dist float64
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &metaJSON,
			&note.CreatedAt, &note.UpdatedAt, &dist); err != nil {
			continue
		}
		json.Unmarshal([]byte(tagsJSON), &note.Tags)
		note.Similarity = 1 - dist
		if note.Similarity < minSimilarity {
			continue
		}
		results = append(results, &note)
	}
	logging.NotesDebug("semantic search (vec) returned %d results", len(results))
	return results, rows.Err()
}

// searchSemanticScan loads stored embeddings and scores in-process.
// Fine for a personal corpus; the vec path exists for larger ones.
func (s *Store) searchSemanticScan(queryVec []float32, limit int, minSimilarity float64) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, title, content, tags, metadata, embedding, created_at, updated_at FROM notes WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Note
	for rows.Next() {
		var note Note
		var tagsJSON, metaJSON string
		var embJSON sql.NullString
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &metaJSON,
			&embJSON, &note.CreatedAt, &note.UpdatedAt); err != nil {
			continue
		}
		if !embJSON.Valid {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embJSON.String), &vec); err != nil {
			continue
		}
		json.Unmarshal([]byte(tagsJSON), &note.Tags)
		note.Similarity = embedding.CosineSimilarity(queryVec, vec)
		if note.Similarity < minSimilarity {
			continue
		}
		results = append(results, &note)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	logging.NotesDebug("semantic search (scan) returned %d results", len(results))
	return results, rows.Err()
}

// SearchTags returns notes carrying any of the given tags, newest
// first. Tag comparison is case-insensitive.
func (s *Store) SearchTags(tags []string, limit int) ([]*Note, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Tags are stored as a JSON array; LIKE on the serialized form with
	// quote anchors avoids substring false positives across tag
	// boundaries.
	var conditions []string
	var args []interface{}
	for _, tag := range tags {
		conditions = append(conditions, "LOWER(tags) LIKE ?")
		args = append(args, `%"`+strings.ToLower(strings.TrimPrefix(tag, "#"))+`"%`)
	}
	args = append(args, limit)

	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT id, title, content, tags, metadata, created_at, updated_at FROM notes WHERE %s ORDER BY updated_at DESC LIMIT ?",
		strings.Join(conditions, " OR "),
	), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := collectNotes(rows)
	logging.NotesDebug("tag search for %v returned %d results", tags, len(results))
	return results, err
}

// SearchKeyword returns notes whose title or content contains every
// keyword of the query, newest first.
func (s *Store) SearchKeyword(query string, limit int) ([]*Note, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var conditions []string
	var args []interface{}
	for _, kw := range keywords {
		conditions = append(conditions, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)")
		args = append(args, "%"+kw+"%", "%"+kw+"%")
	}
	args = append(args, limit)

	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT id, title, content, tags, metadata, created_at, updated_at FROM notes WHERE %s ORDER BY updated_at DESC LIMIT ?",
		strings.Join(conditions, " AND "),
	), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := collectNotes(rows)
	logging.NotesDebug("keyword search %q returned %d results", query, len(results))
	return results, err
}

// Recent returns the most recently updated notes.
func (s *Store) Recent(limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, title, content, tags, metadata, created_at, updated_at FROM notes ORDER BY updated_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

// Related returns the notes most similar to the given note's stored
// embedding, excluding the note itself. Returns nil when the note has
// no embedding.
func (s *Store) Related(ctx context.Context, id string, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 3
	}

	s.mu.RLock()
	var embJSON sql.NullString
	err := s.db.QueryRow("SELECT embedding FROM notes WHERE id = ?", id).Scan(&embJSON)
	s.mu.RUnlock()
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if !embJSON.Valid {
		return nil, nil
	}

	var vec []float32
	if err := json.Unmarshal([]byte(embJSON.String), &vec); err != nil {
		return nil, nil
	}

	candidates, err := s.searchSemanticScan(vec, limit+1, 0)
	if err != nil {
		return nil, err
	}
	related := make([]*Note, 0, limit)
	for _, note := range candidates {
		if note.ID == id {
			continue
		}
		related = append(related, note)
		if len(related) == limit {
			break
		}
	}
	return related, nil
}

func collectNotes(rows *sql.Rows) ([]*Note, error) {
	var results []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			continue
		}
		results = append(results, note)
	}
	return results, rows.Err()
}
