// Package notes implements persistent note storage with semantic, tag,
// and keyword search over SQLite.
package notes

import (
	"strings"
	"time"
)

// Note is one stored note.
type Note struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Tags      []string               `json:"tags,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`

	// Similarity is the cosine score from semantic search, zero for
	// notes returned by other search modes.
	Similarity float64 `json:"similarity,omitempty"`
}

// Excerpt returns the first n runes of the content.
func (n *Note) Excerpt(max int) string {
	runes := []rune(n.Content)
	if len(runes) <= max {
		return n.Content
	}
	return string(runes[:max]) + "..."
}

// HasTag reports whether the note carries tag, ignoring case.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
