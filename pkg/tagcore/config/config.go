// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
)

// Config is the full engine configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	// Categories is the closed category vocabulary, seeded at startup.
	Categories []string         `yaml:"categories"`
	Classifier ClassifierConfig `yaml:"classifier"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Blob       BlobConfig       `yaml:"blob"`
}

// StorageConfig locates the SQLite database
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ClassifierConfig holds classification tunables
type ClassifierConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxChars    int     `yaml:"max_chars"`
}

// LLMConfig points at an OpenAI-compatible chat endpoint
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig points at the embedding endpoint
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// BlobConfig points at the blob storage host articles bodies live on
type BlobConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Load reads and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the parts every deployment needs
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path required", internalerr.ErrInvalidConfig)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: at least one category required", internalerr.ErrInvalidConfig)
	}
	if c.Classifier.Temperature < 0 || c.Classifier.Temperature > 2 {
		return fmt.Errorf("%w: classifier.temperature out of range", internalerr.ErrInvalidConfig)
	}
	if c.Classifier.MaxChars < 0 {
		return fmt.Errorf("%w: classifier.max_chars negative", internalerr.ErrInvalidConfig)
	}
	return nil
}
