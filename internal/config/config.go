// Package config loads configuration from the environment and wires logging.
package config

import (
	"log/slog"
	"os"
	"strings"
)

// Provider identifies which LLM backend runs generation jobs.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
	// ProviderStatic renders the prompt template without calling an LLM.
	// Used for local development and tests.
	ProviderStatic Provider = "static"
)

// Config holds all configuration values.
type Config struct {
	// Artifact version store
	DataDir string

	// HTTP server
	ServerPort string

	// SurrealDB job mirror. An empty URL disables durable job persistence;
	// the in-memory registry remains authoritative either way.
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Generation backend
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Run the legacy-file reconciler before serving traffic.
	MigrateOnStart bool
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		DataDir:    getEnv("GENVAULT_DATA_DIR", "./data/artifacts"),
		ServerPort: getEnv("GENVAULT_SERVER_PORT", "8585"),

		SurrealDBURL:       getEnv("GENVAULT_SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("GENVAULT_SURREALDB_NAMESPACE", "genvault"),
		SurrealDBDatabase:  getEnv("GENVAULT_SURREALDB_DATABASE", "jobs"),
		SurrealDBUser:      getEnv("GENVAULT_SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("GENVAULT_SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("GENVAULT_SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     Provider(getEnv("GENVAULT_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("GENVAULT_LLM_MODEL", "llama3.2"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		LogFile:  getEnv("GENVAULT_LOG_FILE", "/tmp/genvault.log"),
		LogLevel: parseLogLevel(getEnv("GENVAULT_LOG_LEVEL", "INFO")),

		MigrateOnStart: getEnv("GENVAULT_MIGRATE_ON_START", "true") == "true",
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
