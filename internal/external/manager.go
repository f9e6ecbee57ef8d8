package external

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"memora/internal/logging"
)

// =============================================================================
// SOURCE MANAGER
// =============================================================================

// Manager fans a search out across all configured sources, retrying
// transient failures, and merges the results. A failing source only
// loses its own results.
type Manager struct {
	mu         sync.RWMutex
	sources    []Source
	timeout    time.Duration
	maxResults int
}

// NewManager creates a manager over the given sources.
func NewManager(sources []Source, timeout time.Duration, maxResults int) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Manager{sources: sources, timeout: timeout, maxResults: maxResults}
}

// AddSource registers another source at runtime.
func (m *Manager) AddSource(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, s)
}

// SourceNames lists the configured source names.
func (m *Manager) SourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return names
}

// Search queries every source concurrently and merges results, newest
// sources first within the overall cap. Individual source failures are
// logged and dropped; Search itself only fails when the parent context
// does.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	m.mu.RLock()
	sources := make([]Source, len(m.sources))
	copy(sources, m.sources)
	m.mu.RUnlock()

	if len(sources) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = m.maxResults
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var resMu sync.Mutex
	merged := make([]Result, 0, limit*len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			results, err := m.searchWithRetry(gctx, src, query, limit)
			if err != nil {
				logging.Get(logging.CategoryExternal).Warn("source %s failed: %v", src.Name(), err)
				return nil // isolate the failure
			}
			resMu.Lock()
			merged = append(merged, results...)
			resMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].FetchedAt.After(merged[j].FetchedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	logging.External("search %q returned %d result(s) from %d source(s)", query, len(merged), len(sources))
	return merged, nil
}

// searchWithRetry retries one source with exponential backoff, at most
// twice, inside the manager's overall search timeout.
func (m *Manager) searchWithRetry(ctx context.Context, src Source, query string, limit int) ([]Result, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)

	var results []Result
	operation := func() error {
		var err error
		results, err = src.Search(ctx, query, limit)
		return err
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return results, nil
}

// Availability probes every source. Used for the availability
// notification on startup.
func (m *Manager) Availability(ctx context.Context) map[string]bool {
	m.mu.RLock()
	sources := make([]Source, len(m.sources))
	copy(sources, m.sources)
	m.mu.RUnlock()

	out := make(map[string]bool, len(sources))
	for _, s := range sources {
		out[s.Name()] = s.Available(ctx)
	}
	return out
}
