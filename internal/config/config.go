// Package config provides configuration loading and structs for the Kioku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Events    EventsConfig    `yaml:"events"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the snapshot directory and auto-persistence settings.
type StorageConfig struct {
	// DataDir is the base directory for vectors/, metadata/, and indices/.
	DataDir                    string `yaml:"data_dir"`
	AutoPersist                bool   `yaml:"auto_persist"`
	AutoPersistIntervalSeconds int    `yaml:"auto_persist_interval_seconds"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedder: "mock", "openai", or "onnx".
	Provider        string `yaml:"provider"`
	ModelPath       string `yaml:"model_path"` // onnx
	Model           string `yaml:"model"`      // openai
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Dimensions      int    `yaml:"dimensions"`
	MaxTokens       int    `yaml:"max_tokens"`
	CacheSize       int    `yaml:"cache_size"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// SearchConfig holds search, snippet, and chunking settings.
type SearchConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	GenerateSnippets    *bool   `yaml:"generate_snippets"`
	SnippetLength       int     `yaml:"snippet_length"`
	FileChunkSize       int     `yaml:"file_chunk_size"`
}

// SnippetsEnabled returns whether snippets are generated; defaults to true when unset.
func (s *SearchConfig) SnippetsEnabled() bool {
	return s.GenerateSnippets == nil || *s.GenerateSnippets
}

// EventsConfig holds the outbound notification buffer settings.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// WatchConfig holds directory watch settings for auto-ingestion.
// Watched directories are always walked recursively.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
