// Package external retrieves supporting material from sources outside
// the note store: remote search APIs and plain web pages. Everything
// here is best-effort; the pipeline treats an empty result set and a
// failed lookup identically.
package external

import (
	"context"
	"time"
)

// Result is one item returned by an external source.
type Result struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Snippet   string    `json:"snippet"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Source searches one external provider.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	// Available reports whether the source is currently reachable;
	// best-effort, used for availability notifications.
	Available(ctx context.Context) bool
}
