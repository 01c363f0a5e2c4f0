// Package config loads and validates slackfaq configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file name.
const ConfigFileName = "slackfaq.yaml"

// Config represents the complete slackfaq configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Collection CollectionConfig `yaml:"collection" json:"collection"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// PathsConfig configures where index data lives.
type PathsConfig struct {
	// DataDir is the root directory for collection data
	// (SQLite payloads, BM25 index, vector index).
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// CollectionConfig configures the default collection.
type CollectionConfig struct {
	// Name is the default collection name.
	Name string `yaml:"name" json:"name"`

	// Mode is the default ingestion mode: dense, sparse, or hybrid.
	Mode string `yaml:"mode" json:"mode"`

	// EmbedDim is the dense embedding dimensionality.
	EmbedDim int `yaml:"embed_dim" json:"embed_dim"`
}

// SearchConfig configures hybrid retrieval parameters.
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxResults is the default result limit.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "openai", "ollama", or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model handle.
	Model string `yaml:"model" json:"model"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible
	// gateways, local ollama).
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	// CacheSize is the LRU query-embedding cache capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// GenerationConfig configures the answer generation collaborator.
type GenerationConfig struct {
	// Model is the chat model used for answer assembly and the
	// relevancy judge.
	Model string `yaml:"model" json:"model"`
}

// MetricsConfig configures the interaction metrics sink.
type MetricsConfig struct {
	// DBPath is the SQLite database for per-query interaction records.
	DBPath string `yaml:"db_path" json:"db_path"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".slackfaq",
		},
		Collection: CollectionConfig{
			Name:     "slack_QA",
			Mode:     "hybrid",
			EmbedDim: 768,
		},
		Search: SearchConfig{
			RRFConstant: 60,
			MaxResults:  10,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Model:     "jinaai/jina-embeddings-v2-base-en",
			APIKeyEnv: "OPENAI_API_KEY",
			CacheSize: 1000,
		},
		Generation: GenerationConfig{
			Model: "gpt-4o-mini",
		},
		Metrics: MetricsConfig{
			DBPath: filepath.Join(".slackfaq", "metrics.db"),
		},
	}
}

// Load reads configuration from dir/slackfaq.yaml, applying defaults for
// missing fields and environment overrides. A missing file is not an error;
// defaults are returned.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to dir/slackfaq.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	switch c.Collection.Mode {
	case "dense", "sparse", "hybrid":
	default:
		return fmt.Errorf("collection.mode must be dense, sparse, or hybrid (got %q)", c.Collection.Mode)
	}
	if c.Collection.Mode != "sparse" && c.Collection.EmbedDim <= 0 {
		return fmt.Errorf("collection.embed_dim must be positive for %s mode", c.Collection.Mode)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive (got %d)", c.Search.RRFConstant)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive (got %d)", c.Search.MaxResults)
	}
	return nil
}

// APIKey resolves the provider API key from the configured environment
// variable. Empty when unset.
func (c *Config) APIKey() string {
	if c.Embeddings.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embeddings.APIKeyEnv)
}

// applyEnvOverrides applies environment variable overrides.
// Env vars take priority over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLACKFAQ_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("SLACKFAQ_EMBED_BASE_URL"); v != "" {
		cfg.Embeddings.BaseURL = v
	}
	if v := os.Getenv("SLACKFAQ_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
}
