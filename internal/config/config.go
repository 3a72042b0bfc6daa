// Package config handles application configuration: a YAML file merged
// over defaults, with .env overrides applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/gateway"
)

// Config represents the application configuration.
type Config struct {
	Defaults  DefaultsConfig            `yaml:"defaults"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Server    ServerConfig              `yaml:"server,omitempty"`
	Vault     VaultConfig               `yaml:"vault,omitempty"`
}

// DefaultsConfig holds the default discussion settings.
type DefaultsConfig struct {
	Mode             string `yaml:"mode"`
	MaxRounds        int    `yaml:"max_rounds"`
	Pacing           string `yaml:"pacing"`
	AutoDelaySeconds int    `yaml:"auto_delay_seconds"`
}

// ProviderConfig holds provider-specific settings.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model,omitempty"`
	KeyEnv  string `yaml:"key_env,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// VaultConfig holds reference-index settings.
type VaultConfig struct {
	Path         string `yaml:"path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
}

// Default returns the default configuration.
func Default() *Config {
	providers := make(map[string]ProviderConfig)
	for name, model := range core.DefaultModelForProvider {
		providers[name] = ProviderConfig{
			Enabled: name != "mock",
			Model:   model,
			KeyEnv:  core.KeyEnvForProvider[name],
		}
	}

	return &Config{
		Defaults: DefaultsConfig{
			Mode:             string(core.ModeRoundRobin),
			MaxRounds:        3,
			Pacing:           string(core.PacingAuto),
			AutoDelaySeconds: 5,
		},
		Providers: providers,
		Server: ServerConfig{
			Port: 8765,
		},
		Vault: VaultConfig{
			Path:         DefaultVaultPath(),
			ChunkSize:    512,
			ChunkOverlap: 64,
			TopK:         3,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path. A missing file is not
// an error; defaults apply.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Merge with defaults for any missing providers.
	for name, defaultProvider := range Default().Providers {
		if _, exists := cfg.Providers[name]; !exists {
			cfg.Providers[name] = defaultProvider
		}
	}

	// Apply .env overrides if file exists.
	if env, err := LoadEnv(".env"); err == nil {
		ApplyEnvOverrides(cfg, env)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DebateDefaults builds a discussion config skeleton from the configured
// defaults; callers fill in topic and participants.
func (c *Config) DebateDefaults() core.DebateConfig {
	return core.DebateConfig{
		Mode:      core.Mode(c.Defaults.Mode),
		MaxRounds: c.Defaults.MaxRounds,
		Pacing: core.PacingConfig{
			Mode:             core.PacingMode(c.Defaults.Pacing),
			AutoDelaySeconds: c.Defaults.AutoDelaySeconds,
		},
	}
}

// CreateRegistry builds the backend registry from enabled providers. The
// mock provider gets the simulated streamer so discussions run with no
// network or credentials; real wire backends are registered by embedders
// on top of this registry.
func (c *Config) CreateRegistry() *gateway.Registry {
	registry := gateway.NewRegistry()
	for name, provCfg := range c.Providers {
		if !provCfg.Enabled {
			continue
		}
		b := gateway.Backend{
			ID:           name,
			DefaultModel: provCfg.Model,
			KeyEnv:       provCfg.KeyEnv,
		}
		if name == "mock" {
			b.Stream = gateway.Simulated(20 * time.Millisecond)
		}
		registry.Register(b)
	}
	return registry
}

// CreateGateway builds a gateway over the registry with config-supplied
// credentials taking precedence over the environment.
func (c *Config) CreateGateway() *gateway.Gateway {
	gw := gateway.New(c.CreateRegistry())
	keys := make(map[string]string)
	for name, provCfg := range c.Providers {
		if provCfg.APIKey != "" {
			keys[name] = provCfg.APIKey
		}
	}
	gw.Keys = keys
	return gw
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "colloquy.yaml"
	}
	return filepath.Join(home, ".colloquy", "config.yaml")
}

// DefaultVaultPath returns the default vault database path.
func DefaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vault.db"
	}
	return filepath.Join(home, ".colloquy", "vault.db")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# colloquy configuration file
# Place this file at ~/.colloquy/config.yaml

defaults:
  mode: roundRobin          # roundRobin | freeDiscussion | roleAssignment | battle
  max_rounds: 3             # Full passes through the participant list
  pacing: auto              # auto | manual
  auto_delay_seconds: 5     # Countdown between turns under auto pacing

providers:
  anthropic:
    enabled: true
    model: claude-sonnet-4-5
    key_env: ANTHROPIC_API_KEY
  openai:
    enabled: true
    model: gpt-5.2
    key_env: OPENAI_API_KEY
  gemini:
    enabled: true
    model: gemini-3-flash-preview
    key_env: GEMINI_API_KEY
  ollama:
    enabled: true
    model: llama3.3
    key_env: ""             # Local backend, no credential
  mock:
    enabled: false          # Simulated backend for development
    model: mock-v1

server:
  port: 8765

vault:
  path: ~/.colloquy/vault.db
  chunk_size: 512
  chunk_overlap: 64
  top_k: 3
`
	return example
}
