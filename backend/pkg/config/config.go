package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	apperrors "kgchat/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port        string
	Env         string
	CORSOrigins []string

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Graph
	GraphPath             string
	GraphWatch            bool
	MaxGraphNodes         int
	MaxHops               int
	TemporalDecayRate     float64
	EntityFrequencyWeight float64
	RecencyWeight         float64
	CentralityWeight      float64
	FocalWeight           float64

	// Neo4j (used when GraphPath is a bolt/neo4j URI)
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Text generation
	LLMBaseURL        string
	OpenAIAPIKey      string
	LLMModel          string
	LLMTimeoutSeconds int
	HistoryTurns      int

	// Corpus
	CorpusDir         string
	ChunkSize         int
	ChunkOverlap      int
	RetrievalTopK     int
	MaxParallelInsert int
}

// GraphSettings is the subset of configuration consumed by the subgraph engine
type GraphSettings struct {
	MaxNodes              int
	MaxHops               int
	DecayRate             float64
	EntityFrequencyWeight float64
	RecencyWeight         float64
	CentralityWeight      float64
	FocalWeight           float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		Env:         getEnv("ENV", "development"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174", "http://localhost:5175"}),

		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),

		GraphPath:             getEnv("GRAPH_PATH", "./storage/graph_chunk_entity_relation.graphml"),
		GraphWatch:            getEnvBool("GRAPH_WATCH", true),
		MaxGraphNodes:         getEnvInt("MAX_GRAPH_NODES", 100),
		MaxHops:               getEnvInt("MAX_HOPS", 2),
		TemporalDecayRate:     getEnvFloat("TEMPORAL_DECAY_RATE", 0.95),
		EntityFrequencyWeight: getEnvFloat("ENTITY_FREQUENCY_WEIGHT", 0.3),
		RecencyWeight:         getEnvFloat("RECENCY_WEIGHT", 0.2),
		CentralityWeight:      getEnvFloat("CENTRALITY_WEIGHT", 0.3),
		FocalWeight:           getEnvFloat("FOCAL_WEIGHT", 0.2),

		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", ""),

		LLMBaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeoutSeconds: getEnvInt("LLM_TIMEOUT_SECONDS", 60),
		HistoryTurns:      getEnvInt("HISTORY_TURNS", 5),

		CorpusDir:         getEnv("CORPUS_DIR", "./data/corpus"),
		ChunkSize:         getEnvInt("CHUNK_SIZE", 1200),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 100),
		RetrievalTopK:     getEnvInt("RETRIEVAL_TOP_K", 4),
		MaxParallelInsert: getEnvInt("MAX_PARALLEL_INSERT", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return apperrors.NewConfigValidationFailed("PORT", "is required")
	}
	if c.GraphPath == "" {
		return apperrors.NewConfigValidationFailed("GRAPH_PATH", "is required")
	}
	if c.TemporalDecayRate <= 0 || c.TemporalDecayRate > 1 {
		return apperrors.NewConfigValidationFailed("TEMPORAL_DECAY_RATE", "must be in (0, 1]")
	}
	weights := []struct {
		name  string
		value float64
	}{
		{"ENTITY_FREQUENCY_WEIGHT", c.EntityFrequencyWeight},
		{"RECENCY_WEIGHT", c.RecencyWeight},
		{"CENTRALITY_WEIGHT", c.CentralityWeight},
		{"FOCAL_WEIGHT", c.FocalWeight},
	}
	for _, w := range weights {
		if w.value < 0 {
			return apperrors.NewConfigValidationFailed(w.name, "must be non-negative")
		}
	}
	if c.MaxHops < 0 {
		return apperrors.NewConfigValidationFailed("MAX_HOPS", "must be non-negative")
	}
	if c.MaxGraphNodes < 0 {
		return apperrors.NewConfigValidationFailed("MAX_GRAPH_NODES", "must be non-negative")
	}
	if c.ChunkSize <= 0 {
		return apperrors.NewConfigValidationFailed("CHUNK_SIZE", "must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return apperrors.NewConfigValidationFailed("CHUNK_OVERLAP", "must be in [0, CHUNK_SIZE)")
	}
	// OPENAI_API_KEY is optional: the generator reports not-ready without it
	return nil
}

// GraphSettings projects the values used by the subgraph engine
func (c *Config) GraphSettings() GraphSettings {
	return GraphSettings{
		MaxNodes:              c.MaxGraphNodes,
		MaxHops:               c.MaxHops,
		DecayRate:             c.TemporalDecayRate,
		EntityFrequencyWeight: c.EntityFrequencyWeight,
		RecencyWeight:         c.RecencyWeight,
		CentralityWeight:      c.CentralityWeight,
		FocalWeight:           c.FocalWeight,
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
