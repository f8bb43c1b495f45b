package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.ChatModel != "llama3" {
		t.Fatalf("expected default chat model, got %q", cfg.Ollama.ChatModel)
	}
	if cfg.Splitter.ChunkSize != 1000 || cfg.Splitter.ChunkOverlap != 100 {
		t.Fatalf("unexpected splitter defaults: %+v", cfg.Splitter)
	}
	if cfg.Chat.MemoryLength != 6 {
		t.Fatalf("expected default memory length 6, got %d", cfg.Chat.MemoryLength)
	}
	if got := cfg.HTTPAddr(); got != "0.0.0.0:8080" {
		t.Fatalf("unexpected default addr %q", got)
	}
	if cfg.Redis.Addr != "" || cfg.RabbitMQ.URL != "" {
		t.Fatalf("optional backends must default to disabled: %+v", cfg)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9090

[ollama]
chat_model = "mistral"
pull_retries = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OLLAMA_CHAT_MODEL", "qwen")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Fatalf("expected port from file, got %d", cfg.App.Port)
	}
	if cfg.Ollama.PullRetries != 3 {
		t.Fatalf("expected pull retries from file, got %d", cfg.Ollama.PullRetries)
	}
	if cfg.Ollama.ChatModel != "qwen" {
		t.Fatalf("environment must win over the file, got %q", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.BaseURL != "http://127.0.0.1:11434" {
		t.Fatalf("untouched keys must keep defaults, got %q", cfg.Ollama.BaseURL)
	}
}
