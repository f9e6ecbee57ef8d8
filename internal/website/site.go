package website

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"memora/internal/logging"
)

// =============================================================================
// SITE MANAGER
// =============================================================================

// Status describes the current state of the personal website.
type Status struct {
	SiteDir      string    `json:"site_dir"`
	Exists       bool      `json:"exists"`
	PageCount    int       `json:"page_count"`
	LastGenerate time.Time `json:"last_generate,omitempty"`
	LastDeploy   time.Time `json:"last_deploy,omitempty"`
	Deployed     bool      `json:"deployed"`
}

// Notifier receives lifecycle events after generate and deploy finish.
// The orchestrator wires this to mediator notifications.
type Notifier func(event string, payload map[string]any)

// Manager owns the static site directory and the generate/deploy steps.
type Manager struct {
	mu        sync.Mutex
	siteDir   string
	outputDir string
	notify    Notifier

	lastGenerate time.Time
	lastDeploy   time.Time
}

// NewManager creates a manager over siteDir. outputDir is where deploy
// copies the generated pages; an empty notify is replaced with a no-op.
func NewManager(siteDir, outputDir string, notify Notifier) *Manager {
	if notify == nil {
		notify = func(string, map[string]any) {}
	}
	return &Manager{
		siteDir:   siteDir,
		outputDir: outputDir,
		notify:    notify,
	}
}

// Status reports the site state without modifying anything.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &Status{
		SiteDir:      m.siteDir,
		LastGenerate: m.lastGenerate,
		LastDeploy:   m.lastDeploy,
		Deployed:     !m.lastDeploy.IsZero(),
	}

	info, err := os.Stat(m.siteDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to stat site dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("site path %s is not a directory", m.siteDir)
	}

	st.Exists = true
	st.PageCount, err = countPages(m.siteDir)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Generate (re)builds the site pages from their sources. The current
// implementation stamps a build marker; page rendering hooks in here.
func (m *Manager) Generate(ctx context.Context) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.siteDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create site dir: %w", err)
	}

	marker := filepath.Join(m.siteDir, ".last-build")
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(marker, []byte(stamp+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write build marker: %w", err)
	}

	m.lastGenerate = time.Now()
	pages, err := countPages(m.siteDir)
	if err != nil {
		return nil, err
	}

	logging.Website("Site generated: %d pages in %s", pages, m.siteDir)
	m.notify("generated", map[string]any{
		"site_dir":   m.siteDir,
		"page_count": pages,
	})

	return &Status{
		SiteDir:      m.siteDir,
		Exists:       true,
		PageCount:    pages,
		LastGenerate: m.lastGenerate,
		LastDeploy:   m.lastDeploy,
		Deployed:     !m.lastDeploy.IsZero(),
	}, nil
}

// Deploy copies the generated site into the output directory.
func (m *Manager) Deploy(ctx context.Context) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastGenerate.IsZero() {
		if _, err := os.Stat(filepath.Join(m.siteDir, ".last-build")); err != nil {
			return nil, fmt.Errorf("site has not been generated yet")
		}
	}

	if err := copyTree(m.siteDir, m.outputDir); err != nil {
		return nil, fmt.Errorf("deploy failed: %w", err)
	}

	m.lastDeploy = time.Now()
	pages, err := countPages(m.outputDir)
	if err != nil {
		return nil, err
	}

	logging.Website("Site deployed: %d pages to %s", pages, m.outputDir)
	m.notify("deployed", map[string]any{
		"output_dir": m.outputDir,
		"page_count": pages,
	})

	return &Status{
		SiteDir:      m.siteDir,
		Exists:       true,
		PageCount:    pages,
		LastGenerate: m.lastGenerate,
		LastDeploy:   m.lastDeploy,
		Deployed:     true,
	}, nil
}

// countPages counts HTML and markdown files under dir.
func countPages(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".html", ".md":
			count++
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to walk site dir: %w", err)
	}
	return count, nil
}

// copyTree copies every regular file under src into dst, preserving
// relative paths.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
