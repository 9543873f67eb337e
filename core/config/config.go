// Package config loads the service configuration from YAML with
// environment variable overrides for secrets and deployment paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Retry     RetryConfig     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ProviderConfig struct {
	// Name selects the adapter: "openai" or "anthropic".
	Name string `yaml:"name"`

	// APIKey is usually supplied via OPENAI_API_KEY or
	// ANTHROPIC_API_KEY instead of the file.
	APIKey string `yaml:"api_key"`

	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	// DataDir holds the session database and search index.
	DataDir string `yaml:"data_dir"`
}

type RetrievalConfig struct {
	Enabled       bool    `yaml:"enabled"`
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`

	// EmbeddingAPIKey defaults to the provider key when empty.
	EmbeddingAPIKey string `yaml:"embedding_api_key"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	TimeoutRetries int           `yaml:"timeout_retries"`
	InitialDelay   time.Duration `yaml:"initial_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8765,
		},
		Provider: ProviderConfig{
			Name:      "openai",
			MaxTokens: 4096,
			Timeout:   120 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			Enabled:       true,
			TopK:          5,
			MinSimilarity: 0.30,
		},
		Retry: RetryConfig{
			MaxAttempts:    4,
			TimeoutRetries: 1,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scriptorium"
	}
	return filepath.Join(home, ".scriptorium")
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides. An empty
// path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCRIPTORIUM_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("SCRIPTORIUM_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("SCRIPTORIUM_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SCRIPTORIUM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCRIPTORIUM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Provider keys come from the conventional variables.
	if cfg.Provider.APIKey == "" {
		switch cfg.Provider.Name {
		case "anthropic":
			cfg.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.Retrieval.EmbeddingAPIKey == "" {
		cfg.Retrieval.EmbeddingAPIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	return nil
}
