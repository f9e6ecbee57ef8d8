package profile

import (
	"context"
	"strings"

	"memora/internal/embedding"
	"memora/internal/logging"
)

// =============================================================================
// RELEVANCE SCORING
// =============================================================================

// Relevance is the outcome of classifying a query against the profile.
type Relevance struct {
	Score   float64 // 0..1, how much profile context the query deserves
	Related bool
	Method  string // "keyword" or "semantic"
}

// profileKeywords are query fragments that strongly imply the user is
// asking about themselves.
var profileKeywords = []string{
	"my profile", "about me", "who am i", "my background",
	"my interests", "my preferences", "my job", "my work",
	"do i like", "am i",
}

// keywordRelevance applies the first-person heuristic. Cheap and
// always available.
func keywordRelevance(query string) Relevance {
	q := strings.ToLower(query)
	for _, kw := range profileKeywords {
		if strings.Contains(q, kw) {
			return Relevance{Score: 0.9, Related: true, Method: "keyword"}
		}
	}
	// Bare first-person pronouns are a weak signal.
	for _, w := range strings.Fields(q) {
		if w == "my" || w == "me" || w == "i" {
			return Relevance{Score: 0.4, Related: true, Method: "keyword"}
		}
	}
	return Relevance{Score: 0.1, Method: "keyword"}
}

// Relevance scores how profile-related the query is. The keyword
// heuristic and the semantic score against the profile embedding are
// computed independently; the higher-confidence signal wins. Any
// failure on the semantic path falls back to the keyword result.
func (s *Store) Relevance(ctx context.Context, engine embedding.Engine, query string) Relevance {
	kw := keywordRelevance(query)

	if engine == nil {
		return kw
	}
	profileVec, err := s.profileEmbedding(ctx, engine)
	if err != nil || profileVec == nil {
		if err != nil {
			logging.Get(logging.CategoryProfile).Debug("profile embedding unavailable: %v", err)
		}
		return kw
	}

	queryVec, err := engine.Embed(ctx, query)
	if err != nil {
		logging.Get(logging.CategoryProfile).Debug("query embedding failed: %v", err)
		return kw
	}

	sem := Relevance{
		Score:  embedding.CosineSimilarity(profileVec, queryVec),
		Method: "semantic",
	}
	sem.Related = sem.Score >= 0.55

	if sem.Score > kw.Score {
		return sem
	}
	return kw
}

// profileEmbedding returns the cached profile embedding, computing it
// on first use after a (re)load. Returns nil for an empty profile.
func (s *Store) profileEmbedding(ctx context.Context, engine embedding.Engine) ([]float32, error) {
	s.mu.RLock()
	cached := s.embedding
	text := s.profile.Text()
	s.mu.RUnlock()

	if cached != nil {
		return cached, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	vec, err := engine.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// A reload may have raced us; only cache if still uncached.
	if s.embedding == nil {
		s.embedding = vec
	}
	vec = s.embedding
	s.mu.Unlock()
	return vec, nil
}
