package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Search.TopK)
	}
	if cfg.Search.SimilarityThreshold != 0.3 {
		t.Errorf("SimilarityThreshold = %v, want 0.3", cfg.Search.SimilarityThreshold)
	}
	if !cfg.Search.SnippetsEnabled() {
		t.Error("snippets should default to enabled")
	}
	if cfg.Search.SnippetLength != 200 {
		t.Errorf("SnippetLength = %d, want 200", cfg.Search.SnippetLength)
	}
	if cfg.Search.FileChunkSize != 1000 {
		t.Errorf("FileChunkSize = %d, want 1000", cfg.Search.FileChunkSize)
	}
	if cfg.Embedding.CacheTTLMinutes != 30 {
		t.Errorf("CacheTTLMinutes = %d, want 30", cfg.Embedding.CacheTTLMinutes)
	}
	if cfg.Storage.AutoPersistIntervalSeconds != 30 {
		t.Errorf("AutoPersistIntervalSeconds = %d, want 30", cfg.Storage.AutoPersistIntervalSeconds)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("Provider = %q, want mock", cfg.Embedding.Provider)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
search:
  top_k: 12
  generate_snippets: false
storage:
  data_dir: ./data
embedding:
  provider: openai
  model: text-embedding-3-small
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.TopK != 12 {
		t.Errorf("TopK = %d, want 12", cfg.Search.TopK)
	}
	if cfg.Search.SnippetsEnabled() {
		t.Error("snippets explicitly disabled")
	}
	if cfg.Storage.DataDir != filepath.Join(dir, "data") {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("Provider = %q", cfg.Embedding.Provider)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("search: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml should error")
	}
}
