package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	GinMode           string
	DatabaseURL       string
	EnableDB          bool
	ModelName         string
	ModelServerURL    string
	KnowledgeFile     string
	WarmModel         bool
	GenerationTimeout time.Duration
	LogLevel          slog.Level
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		EnableDB:       strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		ModelName:      getEnv("MODEL_NAME", "distilgpt2"),
		ModelServerURL: getEnv("MODEL_SERVER_URL", "http://localhost:8000"),
		KnowledgeFile:  os.Getenv("KNOWLEDGE_FILE"),
		WarmModel:      strings.EqualFold(getEnv("WARM_MODEL", "false"), "true"),
		LogLevel:       parseLevel(os.Getenv("LOG_LEVEL")),
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}

	if v := os.Getenv("GENERATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("GENERATION_TIMEOUT must be a non-negative duration, got %q", v)
		}
		cfg.GenerationTimeout = d
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigureLogging installs a text slog handler at the configured level as
// the process default.
func ConfigureLogging(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
