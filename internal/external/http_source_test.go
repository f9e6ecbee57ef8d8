package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSourceSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go concurrency", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"title": "Go blog", "url": "https://go.dev/blog", "snippet": "goroutines and channels"},
			{"title": "Effective Go", "url": "https://go.dev/doc", "snippet": "share memory by communicating"},
			{"title": "Too many", "url": "https://x", "snippet": "dropped by limit"}
		]}`))
	}))
	defer srv.Close()

	src := NewJSONSource("test-api", srv.URL)
	results, err := src.Search(context.Background(), "go concurrency", 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Go blog", results[0].Title)
	assert.Equal(t, "test-api", results[0].Source)
	assert.False(t, results[0].FetchedAt.IsZero())
}

func TestJSONSourceNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewJSONSource("test-api", srv.URL)
	_, err := src.Search(context.Background(), "query", 3)
	assert.Error(t, err)
}

func TestPageSourceExtractsSnippet(t *testing.T) {
	page := `<html><head><title>Ops handbook</title><style>body{}</style></head>
	<body><script>ignored()</script>
	<h1>Runbooks</h1>
	<p>The pager escalation policy routes alerts to the on-call engineer first.</p>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	src := NewPageSource("handbook", srv.URL)
	results, err := src.Search(context.Background(), "pager escalation", 1)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "Ops handbook", results[0].Title)
	assert.Contains(t, results[0].Snippet, "escalation policy")
	assert.NotContains(t, results[0].Snippet, "ignored()")
}

func TestPageSourceNoMatchReturnsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>unrelated content entirely</p></body></html>"))
	}))
	defer srv.Close()

	src := NewPageSource("page", srv.URL)
	results, err := src.Search(context.Background(), "kubernetes ingress", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSnippetAround(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta"

	t.Run("centers on first matching term", func(t *testing.T) {
		s := snippetAround(text, "delta", 20)
		assert.Contains(t, s, "delta")
	})

	t.Run("short terms are ignored", func(t *testing.T) {
		assert.Empty(t, snippetAround(text, "a b", 20))
	})

	t.Run("no match yields empty", func(t *testing.T) {
		assert.Empty(t, snippetAround(text, "omega", 20))
	})
}
