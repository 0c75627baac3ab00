package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/gokb/internal/embedder"
	"github.com/dshills/gokb/pkg/types"
)

// DefaultFile is the config file looked up in the working directory when
// no path is given
const DefaultFile = "gokb.yaml"

// File names inside the data directory
const (
	CacheFileName   = "embedding_cache.json"
	VectorDirName   = "vectors"
	KeywordFileName = "knowledge_fts.db"
)

// Environment overrides
const (
	EnvDataDir           = "GOKB_DATA_DIR"
	EnvEmbeddingProvider = "GOKB_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "GOKB_EMBEDDING_MODEL"
	EnvEmbeddingBaseURL  = "GOKB_EMBEDDING_BASE_URL"
	EnvEmbeddingDim      = "GOKB_EMBEDDING_DIMENSION"
	EnvLogLevel          = "GOKB_LOG_LEVEL"
	EnvLogFormat         = "GOKB_LOG_FORMAT"
)

// Config holds the application configuration
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector,omitempty"`
	Keyword   KeywordConfig   `yaml:"keyword,omitempty"`
	Ingest    IngestConfig    `yaml:"ingest,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "siliconflow" | "openai" | "local"; empty = auto-detect
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	// APIKey falls back to SILICONFLOW_API_KEY / OPENAI_API_KEY
	APIKey string `yaml:"api_key,omitempty"`

	Dimension      int           `yaml:"dimension,omitempty"` // 0 = provider default
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	ChunkThreshold int           `yaml:"chunk_threshold,omitempty"`
	RateLimit      float64       `yaml:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	Burst          int           `yaml:"burst,omitempty"`
	CachePath      string        `yaml:"cache_path,omitempty"`
}

// VectorConfig holds vector index configuration
type VectorConfig struct {
	Path       string `yaml:"path,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// KeywordConfig holds keyword index configuration
type KeywordConfig struct {
	Path string `yaml:"path,omitempty"`
}

// IngestConfig holds ingestion limits
type IngestConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb,omitempty"`
	MaxChunkChars int `yaml:"max_chunk_chars,omitempty"`
	MaxTextChars  int `yaml:"max_text_chars,omitempty"`
}

// SearchConfig holds search defaults
type SearchConfig struct {
	DefaultLimit   int           `yaml:"default_limit,omitempty"`
	MaxQueryChars  int           `yaml:"max_query_chars,omitempty"`
	CacheTTL       time.Duration `yaml:"cache_ttl,omitempty"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "auto" | "console" | "json"
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration at path. With an empty path, DefaultFile is
// used when it exists and the defaults otherwise. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			cfg := &Config{}
			return finish(cfg)
		}
		path = DefaultFile
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NotFoundError is returned when an explicitly named config file is missing
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s", e.Path)
}

// IsNotFound checks if err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.DataDir, EnvDataDir)
	setString(&c.Embedding.Provider, EnvEmbeddingProvider)
	setString(&c.Embedding.Model, EnvEmbeddingModel)
	setString(&c.Embedding.BaseURL, EnvEmbeddingBaseURL)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Log.Format, EnvLogFormat)

	if v := os.Getenv(EnvEmbeddingDim); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", types.ErrValidation, EnvEmbeddingDim, v)
		}
		c.Embedding.Dimension = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = embedder.DefaultTimeout
	}
	if c.Embedding.ChunkThreshold == 0 {
		c.Embedding.ChunkThreshold = embedder.DefaultChunkThreshold
	}
	if c.Embedding.CachePath == "" {
		c.Embedding.CachePath = filepath.Join(c.DataDir, CacheFileName)
	}

	if c.Vector.Path == "" {
		c.Vector.Path = filepath.Join(c.DataDir, VectorDirName)
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "knowledge"
	}
	if c.Keyword.Path == "" {
		c.Keyword.Path = filepath.Join(c.DataDir, KeywordFileName)
	}

	if c.Ingest.MaxFileSizeMB == 0 {
		c.Ingest.MaxFileSizeMB = 50
	}
	if c.Ingest.MaxChunkChars == 0 {
		c.Ingest.MaxChunkChars = 300
	}
	if c.Ingest.MaxTextChars == 0 {
		c.Ingest.MaxTextChars = 10 * 1024 * 1024
	}

	if c.Search.DefaultLimit == 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxQueryChars == 0 {
		c.Search.MaxQueryChars = 1000
	}
	if c.Search.CacheTTL == 0 {
		c.Search.CacheTTL = time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
}

// SetDataDir moves the data directory. Paths that were derived from the
// previous data directory follow it; explicitly configured ones stay.
func (c *Config) SetDataDir(dir string) {
	old := c.DataDir
	c.DataDir = dir
	move := func(p *string, name string) {
		if *p == "" || *p == filepath.Join(old, name) {
			*p = filepath.Join(dir, name)
		}
	}
	move(&c.Embedding.CachePath, CacheFileName)
	move(&c.Vector.Path, VectorDirName)
	move(&c.Keyword.Path, KeywordFileName)
}

// Validate checks the configuration for values no component accepts
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderSiliconFlow, embedder.ProviderOpenAI, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"embedding.chunk_threshold", c.Embedding.ChunkThreshold},
		{"ingest.max_file_size_mb", c.Ingest.MaxFileSizeMB},
		{"ingest.max_chunk_chars", c.Ingest.MaxChunkChars},
		{"ingest.max_text_chars", c.Ingest.MaxTextChars},
		{"search.default_limit", c.Search.DefaultLimit},
		{"search.max_query_chars", c.Search.MaxQueryChars},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.Search.DefaultLimit > 100 {
		errs = append(errs, fmt.Errorf("search.default_limit must be at most 100, got %d", c.Search.DefaultLimit))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must not be negative"))
	}
	if c.Embedding.Timeout < 0 || c.Search.CacheTTL < 0 || c.Search.AttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("durations must not be negative"))
	}
	if c.Embedding.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("embedding.rate_limit must not be negative"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrValidation, errors.Join(errs...))
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  strings.ToLower(c.Embedding.Provider),
		BaseURL:   c.Embedding.BaseURL,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		Dimension: c.Embedding.Dimension,
		Timeout:   c.Embedding.Timeout,
	}
}
