package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsComplete(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "memora", cfg.Name)
	assert.NotEmpty(t, cfg.LLM.Model)
	assert.NotEmpty(t, cfg.Memory.DatabasePath)
	assert.Greater(t, cfg.Retrieval.MaxNotes, 0)
	assert.NotEmpty(t, cfg.Retrieval.TopicKeywords, "topic vocabulary ships with a default")
	assert.False(t, cfg.External.Enabled, "external sources are opt-in")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().LLM.Model, cfg.LLM.Model)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
llm:
  model: gemini-2.5-pro
retrieval:
  max_notes: 9
  topic_keywords:
    homelab: ["proxmox", "home lab"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 9, cfg.Retrieval.MaxNotes)
	assert.Equal(t, []string{"proxmox", "home lab"}, cfg.Retrieval.TopicKeywords["homelab"])
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Mediator.RequestTimeout, cfg.Mediator.RequestTimeout)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("GOOGLE_API_KEY", "from-google")
	t.Setenv("MEMORA_MODEL", "gemini-exp")
	t.Setenv("MEMORA_DB", "/tmp/other.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "from-gemini", cfg.LLM.APIKey, "GEMINI_API_KEY wins over GOOGLE_API_KEY")
	assert.Equal(t, "gemini-exp", cfg.LLM.Model)
	assert.Equal(t, "/tmp/other.db", cfg.Memory.DatabasePath)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, ParseDuration("30s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("not-a-duration", time.Minute))
}
