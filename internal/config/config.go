// Package config loads the layered configuration for the corpus store
// and retrieval engine: package defaults, then an optional YAML file,
// then environment variable overrides, validated as a whole.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// Config is the complete, validated configuration for one engine
// instance.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	HNSW       HNSWConfig       `yaml:"hnsw"`
	Search     SearchConfig     `yaml:"search"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig configures the SQLite-backed persistent store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ChunkingConfig configures the default chunking strategy.
type ChunkingConfig struct {
	Strategy  string `yaml:"strategy"`   // fixed, semantic, code
	ChunkSize int    `yaml:"chunk_size"`
	Overlap   int    `yaml:"overlap"`
}

// EmbeddingsConfig selects and configures the embedder.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider"` // static, http
	Endpoint string `yaml:"endpoint"` // http provider only
	Model    string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

// HNSWConfig configures the optional ANN accelerator.
type HNSWConfig struct {
	Enabled         bool `yaml:"enabled"`
	Dimensions      int  `yaml:"dimensions"`
	Connectivity    int  `yaml:"connectivity"`
	ExpansionAdd    int  `yaml:"expansion_add"`
	ExpansionSearch int  `yaml:"expansion_search"`
}

// SearchConfig configures the hybrid retrieval engine.
type SearchConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	RRFK                int     `yaml:"rrf_k"`
	UseSemantic         bool    `yaml:"use_semantic"`
	UseBM25             bool    `yaml:"use_bm25"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Path   string `yaml:"path"`   // empty means stderr
}

// Default returns the package defaults, applied before any file or
// environment overrides.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "rlm.db"},
		Chunking: ChunkingConfig{
			Strategy:  "fixed",
			ChunkSize: 1000,
			Overlap:   0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			CacheSize: 1000,
		},
		HNSW: HNSWConfig{
			Enabled:         false,
			Connectivity:    16,
			ExpansionAdd:    128,
			ExpansionSearch: 64,
		},
		Search: SearchConfig{
			TopK:                10,
			SimilarityThreshold: 0.3,
			RRFK:                60,
			UseSemantic:         true,
			UseBM25:             true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, an optional rlm.yaml in dir,
// and environment variable overrides, in that precedence order, and
// validates the result.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"rlm.yaml", "rlm.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return rlmerr.InvalidConfig(fmt.Sprintf("failed to read config file %s: %v", path, err))
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return rlmerr.InvalidConfig(fmt.Sprintf("failed to parse config file %s: %v", path, err))
		}
		return nil
	}
	return nil
}

// applyEnvOverrides applies RLM_-prefixed environment variables,
// taking precedence over both defaults and the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RLM_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("RLM_CHUNK_STRATEGY"); v != "" {
		c.Chunking.Strategy = v
	}
	if v := os.Getenv("RLM_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.ChunkSize = n
		}
	}
	if v := os.Getenv("RLM_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RLM_EMBED_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("RLM_HNSW_ENABLED"); v != "" {
		c.HNSW.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RLM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks cross-field invariants the zero-value struct can't
// express on its own.
func (c *Config) Validate() error {
	switch c.Chunking.Strategy {
	case "fixed", "semantic", "code":
	default:
		return rlmerr.InvalidConfig("chunking.strategy must be one of fixed, semantic, code")
	}
	if c.Chunking.ChunkSize <= 0 {
		return rlmerr.InvalidConfig("chunking.chunk_size must be greater than zero")
	}
	if c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return rlmerr.InvalidConfig("chunking.overlap must be less than chunk_size")
	}
	switch c.Embeddings.Provider {
	case "static", "http":
	default:
		return rlmerr.InvalidConfig("embeddings.provider must be static or http")
	}
	if c.Embeddings.Provider == "http" && c.Embeddings.Endpoint == "" {
		return rlmerr.InvalidConfig("embeddings.endpoint is required when provider is http")
	}
	if c.HNSW.Enabled && c.HNSW.Dimensions <= 0 {
		return rlmerr.InvalidConfig("hnsw.dimensions must be set when hnsw.enabled is true")
	}
	if c.Search.TopK <= 0 {
		return rlmerr.InvalidConfig("search.top_k must be greater than zero")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return rlmerr.InvalidConfig("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return rlmerr.InvalidConfig("log.format must be json or text")
	}
	return nil
}
