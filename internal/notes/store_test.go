package notes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine returns canned vectors keyed by substring so tests can
// control similarity ordering without a live API.
type stubEngine struct {
	vectors map[string][]float32
	fail    bool
}

func (e *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, assert.AnError
	}
	for key, vec := range e.vectors {
		if key != "" && contains(text, key) {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (e *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEngine) Dimensions() int { return 3 }
func (e *stubEngine) Name() string    { return "stub" }
func (e *stubEngine) Close() error    { return nil }

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	note, err := store.Create(ctx, "Kubernetes upgrade", "Upgraded the cluster to 1.31", []string{"#infra", "k8s", "infra"})
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
	// Tags are normalized: # stripped, duplicates dropped, sorted.
	assert.Equal(t, []string{"infra", "k8s"}, note.Tags)

	got, err := store.GetByID(note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes upgrade", got.Title)
	assert.True(t, got.HasTag("k8s"))

	_, err = store.GetByID("missing")
	assert.Error(t, err)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	note, err := store.Create(ctx, "Draft", "v1", nil)
	require.NoError(t, err)

	updated, err := store.Update(ctx, note.ID, "Draft", "v2", []string{"writing"})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)
	assert.Equal(t, []string{"writing"}, updated.Tags)

	require.NoError(t, store.Delete(note.ID))
	assert.Error(t, store.Delete(note.ID))

	_, err = store.Update(ctx, "missing", "x", "y", nil)
	assert.Error(t, err)
}

func TestStore_SearchSemantic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	engine := &stubEngine{vectors: map[string][]float32{
		"gardening": {1, 0, 0},
		"compilers": {0, 1, 0},
		"soil":      {0.9, 0.1, 0},
	}}
	store.SetEmbeddingEngine(engine)

	_, err := store.Create(ctx, "Gardening notes", "gardening and soil prep", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "Compiler design", "compilers and parsing", nil)
	require.NoError(t, err)

	results, err := store.SearchSemantic(ctx, "soil and plants", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Gardening notes", results[0].Title)
	assert.Greater(t, results[0].Similarity, 0.5)

	t.Run("no engine returns nil", func(t *testing.T) {
		bare := newTestStore(t)
		results, err := bare.SearchSemantic(ctx, "anything", 5, 0)
		require.NoError(t, err)
		assert.Nil(t, results)
	})

	t.Run("embed failure surfaces", func(t *testing.T) {
		store.SetEmbeddingEngine(&stubEngine{fail: true})
		_, err := store.SearchSemantic(ctx, "x", 5, 0)
		assert.Error(t, err)
	})
}

func TestStore_SearchTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "MCP server notes", "How to build one", []string{"MCP", "dev"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "Grocery list", "milk, eggs", []string{"errands"})
	require.NoError(t, err)

	results, err := store.SearchTags([]string{"mcp"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "MCP server notes", results[0].Title)

	results, err = store.SearchTags([]string{"#errands"}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = store.SearchTags([]string{"nothing"}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchKeyword(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "Sourdough starter", "Feed the starter twice daily", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "Bike maintenance", "Chain lube every 200km", nil)
	require.NoError(t, err)

	results, err := store.SearchKeyword("starter feed", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Sourdough starter", results[0].Title)

	// All keywords must match.
	results, err = store.SearchKeyword("starter chain", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_RecentAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		_, err := store.Create(ctx, title, "content "+title, nil)
		require.NoError(t, err)
	}

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	recent, err := store.Recent(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestStore_Related(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	engine := &stubEngine{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0.95, 0.05, 0},
		"gamma": {0, 1, 0},
	}}
	store.SetEmbeddingEngine(engine)

	a, err := store.Create(ctx, "alpha", "alpha topic", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "beta", "beta topic", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "gamma", "gamma topic", nil)
	require.NoError(t, err)

	related, err := store.Related(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "beta", related[0].Title)

	t.Run("note without embedding", func(t *testing.T) {
		bare := newTestStore(t)
		n, err := bare.Create(ctx, "plain", "no engine", nil)
		require.NoError(t, err)
		related, err := bare.Related(ctx, n.ID, 3)
		require.NoError(t, err)
		assert.Nil(t, related)
	})
}
