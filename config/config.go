package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/talkops-ai/tfknowledge/ai"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/ingestion"
	"github.com/talkops-ai/tfknowledge/storage"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendBadger   = "badger"
	BackendPgvector = "pgvector"
)

// Ingestion log backends.
const (
	LogBackendCSV    = "csv"
	LogBackendBadger = "badger"
)

// Config holds everything needed to run an ingestion or a search.
type Config struct {
	// Mode selects llm, rule or both for extraction.
	// Default: "llm"
	Mode string `yaml:"mode"`

	// ConfidenceThreshold rejects extractions below it. Must be within [0, 1].
	// Default: 0.7
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// BatchSize is the number of nodes written per store round trip.
	// Default: 100
	BatchSize int `yaml:"batch_size"`

	FilterTypes    []string `yaml:"filter_types"`
	FilterServices []string `yaml:"filter_services"`
	ScanDirs       []string `yaml:"scan_dirs"`

	// IndexPath is the provider index Markdown listing resources and data sources.
	IndexPath string `yaml:"index_path"`

	// LogFile is the ingestion log CSV.
	// Default: "ingestion_log.csv"
	LogFile string `yaml:"log_file"`

	// LogBackend keeps the ingestion log in the CSV file (csv) or inside the
	// badger store (badger).
	// Default: "csv"
	LogBackend string `yaml:"log_backend"`

	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Download DownloadConfig `yaml:"download"`
	Search   SearchConfig   `yaml:"search"`
	AI       ai.Config      `yaml:"ai"`
}

// StoreConfig selects and configures the vector store.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
	Table       string `yaml:"table"`

	// Dimensions is the embedding width of every index. It overrides ai.dimensions.
	// Default: 1536
	Dimensions int    `yaml:"dimensions"`
	Similarity string `yaml:"similarity"`
}

// PipelineConfig tunes extraction and splitting.
type PipelineConfig struct {
	Version                 string        `yaml:"version"`
	MaxConcurrency          int           `yaml:"max_concurrency"`
	BestPracticeDelay       time.Duration `yaml:"best_practice_delay"`
	ChunkSize               int           `yaml:"chunk_size"`
	ChunkOverlap            int           `yaml:"chunk_overlap"`
	ContentHashInvalidation bool          `yaml:"content_hash_invalidation"`
}

// DownloadConfig tunes remote document fetches.
type DownloadConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	RawBaseURL  string        `yaml:"raw_base_url"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK      int      `yaml:"top_k"`
	Threshold float32  `yaml:"threshold"`
	NodeTypes []string `yaml:"node_types"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Mode:                string(ingestion.ModeLLM),
		ConfidenceThreshold: 0.7,
		BatchSize:           storage.DefaultBatchSize,
		LogFile:             "ingestion_log.csv",
		LogBackend:          LogBackendCSV,
		Store: StoreConfig{
			Backend:    BackendBadger,
			Path:       "tfknowledge.db",
			Table:      "doc_chunks",
			Dimensions: 1536,
			Similarity: string(storage.SimilarityCosine),
		},
		Pipeline: PipelineConfig{
			Version:           "v1.0.0",
			MaxConcurrency:    4,
			BestPracticeDelay: time.Second,
			ChunkSize:         1000,
			ChunkOverlap:      200,
		},
		Download: DownloadConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Timeout:     10 * time.Second,
			RawBaseURL:  "https://raw.githubusercontent.com/hashicorp/terraform-provider-aws/main/website/docs",
		},
		Search: SearchConfig{
			TopK:      5,
			Threshold: 0.7,
		},
		AI: *ai.DefaultConfig(),
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults. Keys the file does not set keep their
// default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// Pass os.LookupEnv to read the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("TFK_MODE", &c.Mode)
	str("TFK_INDEX_PATH", &c.IndexPath)
	str("TFK_LOG_FILE", &c.LogFile)
	str("TFK_LOG_BACKEND", &c.LogBackend)
	str("TFK_STORE_BACKEND", &c.Store.Backend)
	str("TFK_STORE_PATH", &c.Store.Path)
	str("TFK_DATABASE_URL", &c.Store.DatabaseURL)
	list("TFK_FILTER_TYPES", &c.FilterTypes)
	list("TFK_FILTER_SERVICES", &c.FilterServices)
	list("TFK_SCAN_DIRS", &c.ScanDirs)

	if v, ok := lookup("TFK_CONFIDENCE_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: TFK_CONFIDENCE_THRESHOLD: %w", ErrInvalidConfig, err)
		}
		c.ConfidenceThreshold = f
	}
	if v, ok := lookup("TFK_BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TFK_BATCH_SIZE: %w", ErrInvalidConfig, err)
		}
		c.BatchSize = n
	}

	str("OPENAI_API_KEY", &c.AI.APIKey)
	if v, ok := lookup("OPENAI_BASE_URL"); ok && v != "" {
		c.AI.EmbeddingHost = v
		c.AI.ExtractorHost = v
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is usable. It normalizes the AI
// section and copies the store dimensions into it.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if _, err := ingestion.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fail("confidence_threshold %v outside [0,1]", c.ConfidenceThreshold)
	}
	if c.BatchSize < 1 {
		return fail("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if _, err := c.DocTypes(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.LogBackend {
	case LogBackendCSV:
		if c.LogFile == "" {
			return fail("log_file is required")
		}
	case LogBackendBadger:
		if c.Store.Backend != BackendBadger {
			return fail("log_backend badger requires store.backend badger")
		}
	default:
		return fail("unknown log_backend %q", c.LogBackend)
	}

	switch c.Store.Backend {
	case BackendBadger:
		if c.Store.Path == "" {
			return fail("store.path is required for the badger backend")
		}
	case BackendPgvector:
		if c.Store.DatabaseURL == "" {
			return fail("store.database_url is required for the pgvector backend")
		}
	default:
		return fail("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.Dimensions < 1 {
		return fail("store.dimensions must be positive, got %d", c.Store.Dimensions)
	}
	if !storage.Similarity(c.Store.Similarity).Valid() {
		return fail("unknown store.similarity %q", c.Store.Similarity)
	}

	if c.Pipeline.MaxConcurrency < 1 {
		return fail("pipeline.max_concurrency must be at least 1")
	}
	if c.Pipeline.BestPracticeDelay < 0 {
		return fail("pipeline.best_practice_delay cannot be negative")
	}
	if c.Pipeline.ChunkSize < 1 || c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fail("pipeline.chunk_overlap must be within [0, chunk_size)")
	}

	if c.Download.MaxAttempts < 1 {
		return fail("download.max_attempts must be at least 1")
	}
	if c.Download.Timeout <= 0 {
		return fail("download.timeout must be positive")
	}

	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fail("search.threshold %v outside [0,1]", c.Search.Threshold)
	}

	c.AI.Dimensions = c.Store.Dimensions
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// DocTypes parses FilterTypes.
func (c *Config) DocTypes() ([]core.DocType, error) {
	types := make([]core.DocType, 0, len(c.FilterTypes))
	for _, name := range c.FilterTypes {
		t, err := core.ParseDocType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
