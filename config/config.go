package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`
	Embedding struct {
		Provider      string        `yaml:"provider"` // openai or ollama
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		Model         string        `yaml:"model"`
		Dimensions    int           `yaml:"dimensions"`
		BatchSize     int           `yaml:"batch_size"`
		BatchInterval time.Duration `yaml:"batch_interval"`
	} `yaml:"embedding"`
	Processing struct {
		ChunkSize    int   `yaml:"chunk_size"`
		ChunkOverlap int   `yaml:"chunk_overlap"`
		TopK         int   `yaml:"top_k"`
		Workers      int   `yaml:"workers"`
		QueueSize    int   `yaml:"queue_size"`
		MaxFileSize  int64 `yaml:"max_file_size"`
	} `yaml:"processing"`
	Paths struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"paths"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load loads configuration from the given file, falling back to defaults.
// A .env file in the working directory is honored before environment
// variables are merged in.
func Load(path string) (*Config, error) {
	// Best effort: missing .env is fine
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".lisa-rag", "config.yaml"),
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	mergeWithEnv(cfg)
	return cfg, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.URL = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Database.MaxConns = 10

	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "text-embedding-3-large"
	cfg.Embedding.Dimensions = 3072
	cfg.Embedding.BatchSize = 100
	cfg.Embedding.BatchInterval = 100 * time.Millisecond

	cfg.Processing.ChunkSize = 1000
	cfg.Processing.ChunkOverlap = 200
	cfg.Processing.TopK = 5
	cfg.Processing.Workers = 2
	cfg.Processing.QueueSize = 32
	cfg.Processing.MaxFileSize = 50 * 1024 * 1024

	cfg.Paths.DataDir = filepath.Join(os.Getenv("HOME"), ".lisa-rag", "uploads")

	cfg.Log.Level = "info"
	cfg.Log.Pretty = false

	return cfg
}

func mergeWithEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = n
		}
	}
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration and returns every problem found.
// Run once at startup so misconfiguration fails fast instead of
// surfacing on first use.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Database.URL == "" {
		errs = append(errs, ValidationError{"database.url", "database URL is required"})
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, ValidationError{"database.max_conns", "max_conns must be positive"})
	}

	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, ValidationError{"embedding.provider", "provider must be openai or ollama"})
	}
	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{"embedding.model", "model is required"})
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, ValidationError{"embedding.dimensions", "dimensions must be positive"})
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, ValidationError{"embedding.batch_size", "batch_size must be positive"})
	}

	if c.Processing.ChunkSize < 1 {
		errs = append(errs, ValidationError{"processing.chunk_size", "chunk_size must be positive"})
	}
	if c.Processing.ChunkOverlap < 0 || c.Processing.ChunkOverlap >= c.Processing.ChunkSize {
		errs = append(errs, ValidationError{"processing.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size"})
	}
	if c.Processing.TopK < 1 {
		errs = append(errs, ValidationError{"processing.top_k", "top_k must be positive"})
	}
	if c.Processing.Workers < 1 {
		errs = append(errs, ValidationError{"processing.workers", "workers must be positive"})
	}
	if c.Processing.MaxFileSize < 1 {
		errs = append(errs, ValidationError{"processing.max_file_size", "max_file_size must be positive"})
	}

	return errs
}
