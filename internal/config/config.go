// Package config provides unified configuration loading for the page reader.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service. It is constructed once at
// process start and passed into every component that needs it.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	LLM           LLMConfig           `yaml:"llm"`
	Upload        UploadConfig        `yaml:"upload"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// StorageConfig holds persisted-state paths.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	HistoryFile string `yaml:"history_file"`
}

// HistoryPath returns the full path of the conversation history file.
func (s StorageConfig) HistoryPath() string {
	return filepath.Join(s.DataDir, s.HistoryFile)
}

// LLMConfig holds model resolution settings.
type LLMConfig struct {
	AllowedProviders []string `yaml:"allowed_providers"`
	MaxTokens        int      `yaml:"max_tokens"`
	DefaultPrompt    string   `yaml:"default_prompt"`
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"http://localhost:5173"},
		},
		Storage: StorageConfig{
			DataDir:     "data",
			HistoryFile: "conversation_history.md",
		},
		LLM: LLMConfig{
			AllowedProviders: []string{"openai", "anthropic", "gemini"},
			MaxTokens:        4096,
			DefaultPrompt:    "help me understand this page",
		},
		Upload: UploadConfig{
			MaxBytes: 32 << 20, // 32 MiB
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "console",
			ServiceName: "page-reader",
		},
	}
}

// applyEnvOverrides overrides config values from environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAGE_READER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PAGE_READER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PAGE_READER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("PAGE_READER_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("PAGE_READER_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Storage.HistoryFile == "" {
		return fmt.Errorf("history_file must not be empty")
	}
	if len(c.LLM.AllowedProviders) == 0 {
		return fmt.Errorf("allowed_providers must not be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max_bytes must be positive")
	}
	return nil
}
