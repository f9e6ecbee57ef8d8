// Package config loads memora configuration from YAML with environment
// variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all memora configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Storage paths
	Memory MemoryConfig `yaml:"memory"`

	// Mediator tuning
	Mediator MediatorConfig `yaml:"mediator"`

	// Retrieval policy
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// External source integration
	External ExternalConfig `yaml:"external"`

	// Website context
	Website WebsiteConfig `yaml:"website"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Model    string `yaml:"model"`
	TaskType string `yaml:"task_type"`
}

// MemoryConfig configures persistent storage.
type MemoryConfig struct {
	DatabasePath string `yaml:"database_path"`
	ProfilePath  string `yaml:"profile_path"`
	WatchProfile bool   `yaml:"watch_profile"`
}

// MediatorConfig tunes the message mediator.
type MediatorConfig struct {
	RequestTimeout string `yaml:"request_timeout"` // Default per-request timeout
	SweepInterval  string `yaml:"sweep_interval"`  // Timed-out request sweep cadence
}

// RetrievalConfig configures the note retrieval fallback chain.
type RetrievalConfig struct {
	MaxNotes      int     `yaml:"max_notes"`
	MinSimilarity float64 `yaml:"min_similarity"`

	// TopicKeywords maps a tag to the query phrases that imply it.
	// The tag extraction heuristic consults this table instead of
	// hardcoding deployment-specific vocabulary.
	TopicKeywords map[string][]string `yaml:"topic_keywords"`
}

// ExternalConfig configures external source retrieval.
type ExternalConfig struct {
	Enabled    bool           `yaml:"enabled"`
	Timeout    string         `yaml:"timeout"`
	MaxResults int            `yaml:"max_results"`
	Sources    []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one external source endpoint.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"` // json, html
	BaseURL string `yaml:"base_url"`
}

// WebsiteConfig configures the website context.
type WebsiteConfig struct {
	BaseURL   string `yaml:"base_url"`
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig configures the categorized logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Name:    "memora",
		Version: "0.3.0",
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "2m",
		},
		Embedding: EmbeddingConfig{
			Model:    "gemini-embedding-001",
			TaskType: "RETRIEVAL_QUERY",
		},
		Memory: MemoryConfig{
			DatabasePath: filepath.Join(".memora", "memora.db"),
			ProfilePath:  filepath.Join(".memora", "profile.yaml"),
			WatchProfile: true,
		},
		Mediator: MediatorConfig{
			RequestTimeout: "30s",
			SweepInterval:  "10s",
		},
		Retrieval: RetrievalConfig{
			MaxNotes:      5,
			MinSimilarity: 0.5,
			TopicKeywords: map[string][]string{
				"MCP": {"mcp", "model context protocol", "model-context-protocol"},
			},
		},
		External: ExternalConfig{
			Enabled:    false,
			Timeout:    "15s",
			MaxResults: 3,
		},
		Website: WebsiteConfig{
			OutputDir: filepath.Join(".memora", "site"),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads config from path, layering it over defaults and then
// applying environment overrides. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides pulls secrets from the environment. GEMINI_API_KEY
// takes precedence over GOOGLE_API_KEY.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("MEMORA_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if db := os.Getenv("MEMORA_DB"); db != "" {
		c.Memory.DatabasePath = db
	}
}

// ParseDuration parses a config duration string, returning fallback on
// empty or malformed input.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
