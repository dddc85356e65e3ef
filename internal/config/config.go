package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Vector index backends.
const (
	VectorBackendNeo4j  = "neo4j"
	VectorBackendQdrant = "qdrant"
)

// Config holds all configuration for the service, the worker and kgctl.
type Config struct {
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIModel            string
	EmbeddingModel         string
	EmbeddingDimension     int
	SearchAgentTemperature float32

	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string
	RabbitMQVHost    string

	SimilarityThreshold  float64
	MaxRelationships     int
	TopK                 int
	SearchLimit          int
	RelevanceConcurrency int
	IngestMaxAttempts    int

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	FailureDBPath string
	APIPort       string
	LogLevel      slog.Level
	LogFormat     string

	// WorkerMetricsPort serves /metrics and /health from the worker.
	WorkerMetricsPort string
}

// RabbitMQURL composes the AMQP connection URL from the broker settings.
func (c *Config) RabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPassword),
		Host:   fmt.Sprintf("%s:%d", c.RabbitMQHost, c.RabbitMQPort),
		Path:   "/" + c.RabbitMQVHost,
	}
	return u.String()
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		Neo4jURI:         getEnv("NEO4J_URI", ""),
		Neo4jUser:        getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase:    getEnv("NEO4J_DATABASE", "neo4j"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		RabbitMQHost:     getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQUser:     getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", "guest"),
		RabbitMQVHost:    getEnv("RABBITMQ_VHOST", "/"),
		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendNeo4j)),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "note_embeddings"),
		FailureDBPath:    getEnv("FAILURE_DB_PATH", "./data/ingest-failures.db"),
		APIPort:          getEnv("API_PORT", "8000"),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
	cfg.WorkerMetricsPort = getEnv("WORKER_METRICS_PORT", "9101")

	if cfg.Neo4jURI == "" {
		return nil, fmt.Errorf("NEO4J_URI is required")
	}
	if cfg.Neo4jPassword == "" {
		return nil, fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.EmbeddingDimension, err = getEnvInt("EMBEDDING_DIMENSION", 1536); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be greater than 0")
	}

	temperature, err := getEnvFloat("SEARCH_AGENT_TEMPERATURE", 0)
	if err != nil {
		return nil, err
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("SEARCH_AGENT_TEMPERATURE must be between 0 and 2")
	}
	cfg.SearchAgentTemperature = float32(temperature)

	if cfg.RabbitMQPort, err = getEnvInt("RABBITMQ_PORT", 5672); err != nil {
		return nil, err
	}

	if cfg.SimilarityThreshold, err = getEnvFloat("SIMILARITY_THRESHOLD", 0.7); err != nil {
		return nil, err
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be between 0 and 1")
	}

	if cfg.MaxRelationships, err = getEnvInt("MAX_RELATIONSHIPS", 10); err != nil {
		return nil, err
	}
	if cfg.MaxRelationships <= 0 {
		return nil, fmt.Errorf("MAX_RELATIONSHIPS must be greater than 0")
	}

	if cfg.TopK, err = getEnvInt("TOP_K", 3); err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("TOP_K must be greater than 0")
	}

	if cfg.SearchLimit, err = getEnvInt("SEARCH_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.SearchLimit <= 0 {
		return nil, fmt.Errorf("SEARCH_LIMIT must be greater than 0")
	}

	if cfg.RelevanceConcurrency, err = getEnvInt("RELEVANCE_CONCURRENCY", 16); err != nil {
		return nil, err
	}
	if cfg.RelevanceConcurrency <= 0 {
		return nil, fmt.Errorf("RELEVANCE_CONCURRENCY must be greater than 0")
	}

	if cfg.IngestMaxAttempts, err = getEnvInt("INGEST_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.IngestMaxAttempts <= 0 {
		return nil, fmt.Errorf("INGEST_MAX_ATTEMPTS must be greater than 0")
	}

	switch cfg.VectorBackend {
	case VectorBackendNeo4j, VectorBackendQdrant:
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", VectorBackendNeo4j, VectorBackendQdrant, cfg.VectorBackend)
	}

	if cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	// Create the ledger directory if it doesn't exist
	dataDir := filepath.Dir(cfg.FailureDBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
