package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every runtime option the pipeline recognizes. Values come
// from the environment, optionally seeded from a .env file.
type Config struct {
	Port    string
	GinMode string

	VectorStore  string // memory | chroma | qdrant
	IndexName    string
	ChromaURL    string
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string

	Embedder       string // ollama | gemini | placeholder
	OllamaURL      string
	EmbeddingModel string
	EmbeddingDim   int

	GeminiAPIKey    string
	GenerationModel string

	ChunkSize    int
	ChunkOverlap int
	TopK         int
	Rerank       bool
	Rewrite      bool

	WatchDir string
}

// Load reads configuration from the environment. A selected backend with
// a missing credential fails here, once, with an explicit message.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),

		VectorStore:  strings.ToLower(getEnv("VECTOR_STORE", "memory")),
		IndexName:    getEnv("INDEX_NAME", "queryquack"),
		ChromaURL:    getEnv("CHROMA_URL", "http://localhost:8000"),
		QdrantHost:   getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:   getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),

		Embedder:       strings.ToLower(getEnv("EMBEDDER", "ollama")),
		OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 384),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-1.5-pro"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),
		TopK:         getEnvInt("TOP_K", 5),
		Rerank:       getEnvBool("RERANK", true),
		Rewrite:      getEnvBool("REWRITE", true),

		WatchDir: getEnv("WATCH_DIR", ""),
	}

	return cfg, cfg.validate()
}

// ConfigError reports an invalid or missing configuration value by its
// environment key. Not retryable; the process exits on it.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (c *Config) validate() error {
	switch c.VectorStore {
	case "memory", "chroma", "qdrant":
	default:
		return &ConfigError{Key: "VECTOR_STORE", Reason: fmt.Sprintf("unknown backend %q (want memory, chroma or qdrant)", c.VectorStore)}
	}
	switch c.Embedder {
	case "ollama", "placeholder":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return &ConfigError{Key: "GEMINI_API_KEY", Reason: "required when EMBEDDER=gemini"}
		}
	default:
		return &ConfigError{Key: "EMBEDDER", Reason: fmt.Sprintf("unknown embedder %q (want ollama, gemini or placeholder)", c.Embedder)}
	}
	if c.ChunkSize <= 0 {
		return &ConfigError{Key: "CHUNK_SIZE", Reason: fmt.Sprintf("must be positive, got %d", c.ChunkSize)}
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return &ConfigError{Key: "CHUNK_OVERLAP", Reason: fmt.Sprintf("must satisfy 0 <= overlap < CHUNK_SIZE, got %d", c.ChunkOverlap)}
	}
	if c.EmbeddingDim <= 0 {
		return &ConfigError{Key: "EMBEDDING_DIM", Reason: fmt.Sprintf("must be positive, got %d", c.EmbeddingDim)}
	}
	if c.TopK <= 0 {
		return &ConfigError{Key: "TOP_K", Reason: fmt.Sprintf("must be positive, got %d", c.TopK)}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
