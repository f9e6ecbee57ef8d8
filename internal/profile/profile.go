// Package profile manages the user profile: a YAML document describing
// who the user is, plus relevance scoring that decides how much profile
// context a query deserves.
package profile

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"memora/internal/logging"
)

// Profile is the stored user profile.
type Profile struct {
	Name      string            `yaml:"name"`
	Headline  string            `yaml:"headline"`
	Bio       string            `yaml:"bio"`
	Interests []string          `yaml:"interests"`
	Facts     map[string]string `yaml:"facts"`
}

// Text flattens the profile into prose for embedding and prompting.
func (p *Profile) Text() string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
	}
	if p.Headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", p.Headline)
	}
	if p.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", p.Bio)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	for k, v := range p.Facts {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}

// Summary returns a one-line profile description.
func (p *Profile) Summary() string {
	if p.Headline != "" {
		return fmt.Sprintf("%s — %s", p.Name, p.Headline)
	}
	return p.Name
}

// Store holds the current profile and serves reads. Reload replaces the
// profile wholesale (the watcher calls it on file change).
type Store struct {
	mu      sync.RWMutex
	path    string
	profile *Profile

	// embedding cache, invalidated on reload
	embedding []float32
}

// NewStore loads the profile at path. A missing file yields an empty
// profile, not an error: the assistant degrades to profile-free answers.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, profile: &Profile{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current profile.
func (s *Store) Get() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Reload re-reads the profile file, invalidating the embedding cache.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryProfile).Debug("no profile at %s, using empty profile", s.path)
			s.mu.Lock()
			s.profile = &Profile{}
			s.embedding = nil
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}

	s.mu.Lock()
	s.profile = &p
	s.embedding = nil
	s.mu.Unlock()

	logging.Get(logging.CategoryProfile).Info("profile loaded from %s", s.path)
	return nil
}

// Save writes the profile back to disk and swaps it in.
func (s *Store) Save(p *Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	s.mu.Lock()
	s.profile = p
	s.embedding = nil
	s.mu.Unlock()
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }
