// Package config loads engine configuration from YAML with environment
// variable overrides. Environment wins over file, file wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval engine.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig locates the manifest and artifacts in the blob store.
type StoreConfig struct {
	// Backend selects the blob store: "s3", "minio", "local" or "memory".
	Backend string `yaml:"backend"`

	// Bucket is the S3/MinIO bucket, or the root directory for "local".
	Bucket string `yaml:"bucket"`

	// Endpoint is the MinIO/S3-compatible endpoint (minio backend only).
	Endpoint string `yaml:"endpoint"`

	// Region for the s3 backend.
	Region string `yaml:"region"`

	// ManifestKey is the manifest's object key.
	ManifestKey string `yaml:"manifest_key"`

	// CacheDir stages downloaded artifacts locally; empty disables.
	CacheDir string `yaml:"cache_dir"`

	// DownloadRate caps artifact fetches per second; 0 means unthrottled.
	DownloadRate float64 `yaml:"download_rate"`
}

// RetrieveConfig tunes the search path.
type RetrieveConfig struct {
	// TopK is the number of fused results to return.
	TopK int `yaml:"top_k"`

	// PerCorpusK is the candidate list length requested per corpus.
	// 0 means TopK.
	PerCorpusK int `yaml:"per_corpus_k"`

	// FusionK is the RRF smoothing constant.
	FusionK int `yaml:"fusion_k"`
}

// EmbeddingConfig selects and tunes the query embedder.
type EmbeddingConfig struct {
	// Offline switches to the deterministic mock embedder.
	Offline bool `yaml:"offline"`

	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`

	// CacheSize bounds the embedding LRU; 0 disables caching.
	CacheSize int `yaml:"cache_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     "s3",
			ManifestKey: "manifest.json",
		},
		Retrieve: RetrieveConfig{
			TopK:    5,
			FusionK: 60,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			CacheSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Store.Backend, "RAGFUSE_BACKEND")
	setString(&c.Store.Bucket, "RAGFUSE_BUCKET")
	setString(&c.Store.Endpoint, "RAGFUSE_ENDPOINT")
	setString(&c.Store.Region, "RAGFUSE_REGION")
	setString(&c.Store.ManifestKey, "RAGFUSE_MANIFEST_KEY")
	setString(&c.Store.CacheDir, "RAGFUSE_CACHE_DIR")
	setString(&c.Embedding.Model, "EMBED_MODEL")
	setString(&c.Embedding.BaseURL, "EMBED_BASE_URL")

	if err := setInt(&c.Retrieve.TopK, "TOP_K"); err != nil {
		return err
	}

	if err := setInt(&c.Retrieve.FusionK, "FUSION_K"); err != nil {
		return err
	}

	if err := setInt(&c.Embedding.Dimension, "EMBED_DIMENSION"); err != nil {
		return err
	}

	if err := setBool(&c.Embedding.Offline, "EMBED_OFFLINE"); err != nil {
		return err
	}

	return nil
}

func (c *Config) validate() error {
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", c.Retrieve.TopK)
	}

	if c.Retrieve.FusionK <= 0 {
		return fmt.Errorf("config: fusion_k must be positive, got %d", c.Retrieve.FusionK)
	}

	if c.Retrieve.PerCorpusK < 0 {
		return fmt.Errorf("config: per_corpus_k must not be negative, got %d", c.Retrieve.PerCorpusK)
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}

	switch c.Store.Backend {
	case "s3", "minio", "local", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	return nil
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v, ok := os.LookupEnv(env)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", env, err)
	}

	*dst = n

	return nil
}

func setBool(dst *bool, env string) error {
	v, ok := os.LookupEnv(env)
	if !ok {
		return nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", env, err)
	}

	*dst = b

	return nil
}
