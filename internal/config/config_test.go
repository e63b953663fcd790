package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capflow.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := New()
	if cfg.Storage.Kind != "sqlite" || cfg.Research.MaxTries != 3 || !cfg.Artifacts.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[llm]
model = "llama3"
base_url = "http://localhost:11434/v1"
timeout = 5

[research]
max_results = 8

[storage]
kind = "http"
endpoint = "https://api.example.com"
token_env = "CAPFLOW_TOKEN"

[events]
nats_url = "nats://localhost:4222"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != "llama3" || cfg.LLM.Provider != "openai" {
		t.Errorf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.LLMTimeout() != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.LLMTimeout())
	}
	if cfg.Research.MaxResults != 8 || cfg.Research.MaxTries != 3 {
		t.Errorf("unexpected research config %+v", cfg.Research)
	}
	if cfg.Events.Subject != "capflow" {
		t.Errorf("expected default subject kept, got %q", cfg.Events.Subject)
	}

	t.Setenv("CAPFLOW_TOKEN", "secret")
	if cfg.StorageToken() != "secret" {
		t.Errorf("expected token from env")
	}
}

func TestLoadFileRejectsBadStorage(t *testing.T) {
	path := writeConfig(t, "[storage]\nkind = \"http\"\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for http storage without endpoint")
	}
	path = writeConfig(t, "[storage]\nkind = \"s3\"\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown storage kind")
	}
}

func TestLoadFileRejectsInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[llm\nmodel=")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != New().LLM.Model {
		t.Error("expected defaults")
	}
	if _, err := Load("does-not-exist.toml"); err == nil {
		t.Error("expected error for an explicit missing file")
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")
	t.Setenv("MY_KEY", "sk-custom")
	cfg := New()
	if cfg.APIKey() != "sk-default" {
		t.Errorf("expected provider default env")
	}
	cfg.LLM.APIKeyEnv = "MY_KEY"
	if cfg.APIKey() != "sk-custom" {
		t.Errorf("expected configured env")
	}
}
