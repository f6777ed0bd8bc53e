// Package config provides configuration for the playbook engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// CRM Web API
	CRMBaseURL string

	// Mail collaborator
	MailBaseURL string

	// AI endpoints
	AIBaseURL      string
	AIAPIKey       string
	AnalysisModel  string
	EmbeddingModel string
	UseMockAI      bool

	// Search indexes
	SearchEndpoint     string
	SearchAPIKey       string
	KnowledgeIndexName string
	DiscoveryIndexName string

	// Chunking (characters)
	KnowledgeChunkSize    int
	KnowledgeChunkOverlap int
	DiscoveryChunkSize    int
	DiscoveryChunkOverlap int

	// Timeouts
	RunTimeout   time.Duration
	IndexTimeout time.Duration

	// Policy
	PolicyPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		DatabaseURL: getEnv("DATABASE_URL", "file:playbook.db?cache=shared&mode=rwc"),

		CRMBaseURL:  getEnv("CRM_BASE_URL", "http://localhost:8091"),
		MailBaseURL: getEnv("MAIL_BASE_URL", "http://localhost:8092"),

		AIBaseURL:      getEnv("AI_BASE_URL", "http://localhost:8093"),
		AIAPIKey:       getEnv("AI_API_KEY", ""),
		AnalysisModel:  getEnv("ANALYSIS_MODEL", "gpt-4o"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		UseMockAI:      getEnvBool("USE_MOCK_AI", false),

		SearchEndpoint:     getEnv("SEARCH_ENDPOINT", "http://localhost:8094"),
		SearchAPIKey:       getEnv("SEARCH_API_KEY", ""),
		KnowledgeIndexName: getEnv("KNOWLEDGE_INDEX_NAME", "knowledge-chunks"),
		DiscoveryIndexName: getEnv("DISCOVERY_INDEX_NAME", "discovery-chunks"),

		KnowledgeChunkSize:    getEnvInt("KNOWLEDGE_CHUNK_SIZE", 500),
		KnowledgeChunkOverlap: getEnvInt("KNOWLEDGE_CHUNK_OVERLAP", 50),
		DiscoveryChunkSize:    getEnvInt("DISCOVERY_CHUNK_SIZE", 2000),
		DiscoveryChunkOverlap: getEnvInt("DISCOVERY_CHUNK_OVERLAP", 200),

		RunTimeout:   time.Duration(getEnvInt("RUN_TIMEOUT_MS", 300000)) * time.Millisecond,
		IndexTimeout: time.Duration(getEnvInt("INDEX_TIMEOUT_MS", 120000)) * time.Millisecond,

		PolicyPath: getEnv("POLICY_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
