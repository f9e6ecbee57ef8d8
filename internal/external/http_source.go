package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// =============================================================================
// HTTP SOURCES
// =============================================================================

// JSONSource queries a search endpoint that returns
// {"results": [{"title": ..., "url": ..., "snippet": ...}]}.
type JSONSource struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewJSONSource creates a source over a JSON search API. baseURL should
// accept a `q` query parameter.
func NewJSONSource(name, baseURL string) *JSONSource {
	return &JSONSource{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *JSONSource) Name() string { return s.name }

type jsonSearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search queries the endpoint.
func (s *JSONSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	u := fmt.Sprintf("%s?q=%s", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	var parsed jsonSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", s.name, err)
	}

	now := time.Now()
	results := make([]Result, 0, limit)
	for _, r := range parsed.Results {
		results = append(results, Result{
			Source:    s.name,
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Snippet,
			FetchedAt: now,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// Available probes the endpoint with a HEAD request.
func (s *JSONSource) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// PageSource fetches a single web page and extracts a text snippet
// around the query terms. Useful for pointing the assistant at one
// documentation page.
type PageSource struct {
	name    string
	pageURL string
	client  *http.Client
}

// NewPageSource creates a source over one fetchable page.
func NewPageSource(name, pageURL string) *PageSource {
	return &PageSource{
		name:    name,
		pageURL: pageURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *PageSource) Name() string { return s.name }

// Search fetches the page and returns a snippet when any query term
// appears in its visible text.
func (s *PageSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.name, err)
	}

	title, text := extractText(doc)
	snippet := snippetAround(text, query, 400)
	if snippet == "" {
		return nil, nil
	}

	return []Result{{
		Source:    s.name,
		Title:     title,
		URL:       s.pageURL,
		Snippet:   snippet,
		FetchedAt: time.Now(),
	}}, nil
}

// Available probes the page.
func (s *PageSource) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.pageURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// extractText walks the HTML tree collecting the title and visible
// text, skipping script and style subtrees.
func extractText(doc *html.Node) (title, text string) {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				b.WriteString(trimmed)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, b.String()
}

// snippetAround returns up to max runes of text centered on the first
// occurrence of any query term, or "" when nothing matches.
func snippetAround(text, query string, max int) string {
	lower := strings.ToLower(text)
	best := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) < 3 {
			continue
		}
		if idx := strings.Index(lower, term); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return ""
	}

	start := best - max/2
	if start < 0 {
		start = 0
	}
	end := start + max
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
