package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "postgres://localhost/helpdesk"
embedding:
  provider: ollama
  base_url: "http://localhost:11434"
  model: nomic-embed-text
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAG.ChunkSize != 700 || cfg.RAG.ChunkOverlap != 100 {
		t.Errorf("chunk defaults = %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 5 || cfg.RAG.RerankTimeoutMs != 2000 {
		t.Errorf("retrieval defaults = %d/%d", cfg.RAG.TopK, cfg.RAG.RerankTimeoutMs)
	}
	if cfg.Store.Backend != "postgres" {
		t.Errorf("store backend = %q", cfg.Store.Backend)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://prod-host/helpdesk")
	t.Setenv("OPENROUTER_KEY", "sk-from-env")

	path := writeConfig(t, `
database:
  dsn: "postgres://localhost/helpdesk"
generation:
  model: test-model
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.DSN != "postgres://prod-host/helpdesk" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.GenLLM.Key != "sk-from-env" {
		t.Errorf("generation key = %q", cfg.GenLLM.Key)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
