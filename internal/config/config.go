// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "capflow.toml"

// Config represents the capflow configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Research  ResearchConfig  `toml:"research"`
	Storage   StorageConfig   `toml:"storage"`
	Events    EventsConfig    `toml:"events"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Log       LogConfig       `toml:"log"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"` // openai or none
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"` // OpenAI-compatible endpoint (OpenRouter, Ollama, LM Studio)
	APIKeyEnv string `toml:"api_key_env"`
	Timeout   int    `toml:"timeout"` // seconds per completion
}

// ResearchConfig tunes the web research capability.
type ResearchConfig struct {
	MaxResults int  `toml:"max_results"`
	Timeout    int  `toml:"timeout"` // seconds per attempt
	MaxTries   uint `toml:"max_tries"`
}

// StorageConfig selects where saved content goes.
type StorageConfig struct {
	Kind     string `toml:"kind"` // sqlite or http
	Path     string `toml:"path"`
	Endpoint string `toml:"endpoint"`
	TokenEnv string `toml:"token_env"`
}

// EventsConfig enables NATS progress publishing when NATSURL is set.
type EventsConfig struct {
	NATSURL string `toml:"nats_url"`
	Subject string `toml:"subject"`
}

type ArtifactsConfig struct {
	Enabled        bool `toml:"enabled"`
	WriteDocuments bool `toml:"write_documents"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  60,
		},
		Research: ResearchConfig{
			MaxResults: 5,
			Timeout:    20,
			MaxTries:   3,
		},
		Storage: StorageConfig{
			Kind: "sqlite",
			Path: ".capflow/capflow.db",
		},
		Events: EventsConfig{
			Subject: "capflow",
		},
		Artifacts: ArtifactsConfig{
			Enabled:        true,
			WriteDocuments: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFile loads configuration from a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads path, or capflow.toml from the working directory when path is
// empty. A missing default file yields the defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if _, err := os.Stat(DefaultFile); errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	return LoadFile(DefaultFile)
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "none", "":
	default:
		return fmt.Errorf("config: unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.Storage.Kind {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for sqlite")
		}
	case "http":
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("config: storage.endpoint is required for http")
		}
	default:
		return fmt.Errorf("config: unsupported storage kind %q", c.Storage.Kind)
	}
	return nil
}

// APIKey returns the API key from the configured environment variable.
func (c *Config) APIKey() string {
	env := c.LLM.APIKeyEnv
	if env == "" && c.LLM.Provider == "openai" {
		env = "OPENAI_API_KEY"
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// StorageToken returns the bearer token for the http store.
func (c *Config) StorageToken() string {
	if c.Storage.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Storage.TokenEnv)
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

func (c *Config) ResearchTimeout() time.Duration {
	return time.Duration(c.Research.Timeout) * time.Second
}
