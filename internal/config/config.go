package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	Database DatabaseConfig `toml:"database"`
	Chroma   ChromaConfig   `toml:"chroma"`
	Ollama   OllamaConfig   `toml:"ollama"`
	Whisper  WhisperConfig  `toml:"whisper"`
	Splitter SplitterConfig `toml:"splitter"`
	Chat     ChatConfig     `toml:"chat"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ChromaConfig struct {
	URL        string `toml:"url"`
	Collection string `toml:"collection"`
}

type OllamaConfig struct {
	BaseURL            string `toml:"base_url"`
	ChatModel          string `toml:"chat_model"`
	EmbeddingModel     string `toml:"embedding_model"`
	PullRetries        int    `toml:"pull_retries"`
	PullTimeoutSeconds int    `toml:"pull_timeout_seconds"`
	ListTimeoutSeconds int    `toml:"list_timeout_seconds"`
	ChatTimeoutSeconds int    `toml:"chat_timeout_seconds"`
}

// WhisperConfig points at a local whisper-server. An empty base URL
// disables audio turns.
type WhisperConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type SplitterConfig struct {
	ChunkSize    int      `toml:"chunk_size"`
	ChunkOverlap int      `toml:"chunk_overlap"`
	Separators   []string `toml:"separators"`
}

type ChatConfig struct {
	MemoryLength       int `toml:"memory_length"`
	RetrievedDocuments int `toml:"retrieved_documents"`
}

// RedisConfig enables the transcript cache when Addr is non-empty.
type RedisConfig struct {
	Addr                      string `toml:"addr"`
	Password                  string `toml:"password"`
	DB                        int    `toml:"db"`
	TranscriptTTLSeconds      int    `toml:"transcript_ttl_seconds"`
	TranscriptDirtyTTLSeconds int    `toml:"transcript_dirty_ttl_seconds"`
}

// RabbitMQConfig enables queue-backed background pulls when URL is non-empty.
type RabbitMQConfig struct {
	URL       string `toml:"url"`
	PullQueue string `toml:"pull_queue"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) PullTimeout() time.Duration {
	return time.Duration(c.Ollama.PullTimeoutSeconds) * time.Second
}

func (c *Config) ListTimeout() time.Duration {
	return time.Duration(c.Ollama.ListTimeoutSeconds) * time.Second
}

func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Ollama.ChatTimeoutSeconds) * time.Second
}

func (c *Config) WhisperTimeout() time.Duration {
	return time.Duration(c.Whisper.TimeoutSeconds) * time.Second
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "localchat",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Database: DatabaseConfig{
			Path: "data/chat_history.db",
		},
		Chroma: ChromaConfig{
			URL:        "http://127.0.0.1:8000",
			Collection: "pdfs",
		},
		Ollama: OllamaConfig{
			BaseURL:            "http://127.0.0.1:11434",
			ChatModel:          "llama3",
			EmbeddingModel:     "nomic-embed-text",
			PullRetries:        1,
			PullTimeoutSeconds: 1800,
			ListTimeoutSeconds: 10,
			ChatTimeoutSeconds: 90,
		},
		Whisper: WhisperConfig{
			BaseURL:        "",
			TimeoutSeconds: 60,
		},
		Splitter: SplitterConfig{
			ChunkSize:    1000,
			ChunkOverlap: 100,
			Separators:   []string{"\n\n", "\n", " ", ""},
		},
		Chat: ChatConfig{
			MemoryLength:       6,
			RetrievedDocuments: 3,
		},
		Redis: RedisConfig{
			Addr:                      "",
			Password:                  "",
			DB:                        0,
			TranscriptTTLSeconds:      60,
			TranscriptDirtyTTLSeconds: 5,
		},
		RabbitMQ: RabbitMQConfig{
			URL:       "",
			PullQueue: "chat.model.pull",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Database.Path = getEnv("DATABASE_PATH", cfg.Database.Path)

	cfg.Chroma.URL = getEnv("CHROMA_URL", cfg.Chroma.URL)
	cfg.Chroma.Collection = getEnv("CHROMA_COLLECTION", cfg.Chroma.Collection)

	cfg.Ollama.BaseURL = getEnv("OLLAMA_BASE_URL", cfg.Ollama.BaseURL)
	cfg.Ollama.ChatModel = getEnv("OLLAMA_CHAT_MODEL", cfg.Ollama.ChatModel)
	cfg.Ollama.EmbeddingModel = getEnv("OLLAMA_EMBEDDING_MODEL", cfg.Ollama.EmbeddingModel)
	cfg.Ollama.PullRetries = getEnvAsInt("OLLAMA_PULL_RETRIES", cfg.Ollama.PullRetries)
	cfg.Ollama.PullTimeoutSeconds = getEnvAsInt("OLLAMA_PULL_TIMEOUT_SECONDS", cfg.Ollama.PullTimeoutSeconds)
	cfg.Ollama.ListTimeoutSeconds = getEnvAsInt("OLLAMA_LIST_TIMEOUT_SECONDS", cfg.Ollama.ListTimeoutSeconds)
	cfg.Ollama.ChatTimeoutSeconds = getEnvAsInt("OLLAMA_CHAT_TIMEOUT_SECONDS", cfg.Ollama.ChatTimeoutSeconds)

	cfg.Whisper.BaseURL = getEnv("WHISPER_BASE_URL", cfg.Whisper.BaseURL)
	cfg.Whisper.TimeoutSeconds = getEnvAsInt("WHISPER_TIMEOUT_SECONDS", cfg.Whisper.TimeoutSeconds)

	cfg.Splitter.ChunkSize = getEnvAsInt("SPLITTER_CHUNK_SIZE", cfg.Splitter.ChunkSize)
	cfg.Splitter.ChunkOverlap = getEnvAsInt("SPLITTER_CHUNK_OVERLAP", cfg.Splitter.ChunkOverlap)

	cfg.Chat.MemoryLength = getEnvAsInt("CHAT_MEMORY_LENGTH", cfg.Chat.MemoryLength)
	cfg.Chat.RetrievedDocuments = getEnvAsInt("CHAT_RETRIEVED_DOCUMENTS", cfg.Chat.RetrievedDocuments)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TranscriptTTLSeconds = getEnvAsInt("REDIS_TRANSCRIPT_TTL_SECONDS", cfg.Redis.TranscriptTTLSeconds)
	cfg.Redis.TranscriptDirtyTTLSeconds = getEnvAsInt("REDIS_TRANSCRIPT_DIRTY_TTL_SECONDS", cfg.Redis.TranscriptDirtyTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.PullQueue = getEnv("RABBITMQ_PULL_QUEUE", cfg.RabbitMQ.PullQueue)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
