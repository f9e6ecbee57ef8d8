// Package embedding provides text embedding engines for semantic
// search over notes and the user profile.
package embedding

import (
	"context"
	"math"
)

// Engine generates vector embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
	Close() error
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NoopEngine returns zero vectors. It stands in for a real backend in
// offline runs and tests; every text scores zero similarity.
type NoopEngine struct {
	Dims int
}

func (e *NoopEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dims()), nil
}

func (e *NoopEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dims())
	}
	return out, nil
}

func (e *NoopEngine) Dimensions() int { return e.dims() }
func (e *NoopEngine) Name() string    { return "noop" }
func (e *NoopEngine) Close() error    { return nil }

func (e *NoopEngine) dims() int {
	if e.Dims > 0 {
		return e.Dims
	}
	return 768
}
