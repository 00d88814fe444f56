// Package config loads and validates repomap configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ConfigDir is the per-repo directory holding repomap state.
const ConfigDir = ".repomap"

// ConfigFile is the config filename inside ConfigDir.
const ConfigFile = "config.json"

// Config is the complete repomap configuration.
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Lsp     LspConfig     `json:"lsp" mapstructure:"lsp"`
	Extract ExtractConfig `json:"extract" mapstructure:"extract"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	Export  ExportConfig  `json:"export" mapstructure:"export"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LspConfig configures the language-server channels.
type LspConfig struct {
	Enabled bool                    `json:"enabled" mapstructure:"enabled"`
	Servers map[string]LspServerCfg `json:"servers" mapstructure:"servers"`
	// RequestTimeoutMs bounds a single documentSymbol round trip.
	RequestTimeoutMs int `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
}

// LspServerCfg describes how to spawn one language server. The working
// directory is always the repository root.
type LspServerCfg struct {
	Command string   `json:"command" mapstructure:"command" toml:"command"`
	Args    []string `json:"args" mapstructure:"args" toml:"args"`
}

// ExtractConfig configures the extraction orchestrator.
type ExtractConfig struct {
	// Workers caps concurrent file extraction. Zero means GOMAXPROCS.
	Workers int `json:"workers" mapstructure:"workers"`
	// MaxFileSizeBytes skips files larger than this.
	MaxFileSizeBytes int `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	// CacheSize bounds the per-run LRU of per-file parse results.
	CacheSize int `json:"cacheSize" mapstructure:"cacheSize"`
}

// StorageConfig configures the sqlite snapshot store.
type StorageConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// ExportConfig configures index export.
type ExportConfig struct {
	Format   string `json:"format" mapstructure:"format"` // "json" or "yaml"
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Lsp: LspConfig{
			Enabled: true,
			Servers: map[string]LspServerCfg{
				"typescript": {
					Command: "typescript-language-server",
					Args:    []string{"--stdio"},
				},
				"javascript": {
					Command: "typescript-language-server",
					Args:    []string{"--stdio"},
				},
				"terraform": {
					Command: "terraform-ls",
					Args:    []string{"serve"},
				},
			},
			RequestTimeoutMs: 30000,
		},
		Extract: ExtractConfig{
			Workers:          0,
			MaxFileSizeBytes: 2 * 1024 * 1024,
			CacheSize:        4096,
		},
		Storage: StorageConfig{Enabled: true},
		Export:  ExportConfig{Format: "json"},
		Logging: LoggingConfig{Format: "human", Level: "info"},
	}
}

// Load reads configuration from <repoRoot>/.repomap/config.json, applying
// defaults for anything unset. A missing file yields the defaults. A
// SERVERS.toml declaration file, if present, overrides LSP servers last.
func Load(repoRoot string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.RepoRoot = repoRoot

	path := filepath.Join(repoRoot, ConfigDir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		cfg.RepoRoot = repoRoot
	}

	decl, err := LoadServerDeclarations(repoRoot)
	if err != nil {
		return nil, err
	}
	for lang, server := range decl {
		cfg.Lsp.Servers[lang] = server
	}

	return cfg, nil
}

// Save writes the configuration to <repoRoot>/.repomap/config.json.
func (c *Config) Save() error {
	dir := filepath.Join(c.RepoRoot, ConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ConfigFile)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// RequestTimeoutDuration returns the LSP request timeout with a floor of
// 30 seconds when unset.
func (c *Config) RequestTimeoutDuration() time.Duration {
	if c.Lsp.RequestTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Lsp.RequestTimeoutMs) * time.Millisecond
}
