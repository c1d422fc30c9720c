package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const devJoinTokenSecret = "dev-secret"

// app config, loaded once at start-up
type Config struct {
	Port     string
	Provider string

	DatabaseURL string
	RedisAddr   string
	CacheStore  string

	SessionTTL         time.Duration
	SessionIdleTimeout time.Duration
	AnswerCacheTTL     time.Duration
	ContextWindowSize  int

	CompletionTimeout     time.Duration
	CompletionMaxTokens   int
	CompletionTemperature float64

	JoinTokenSecret string
	JoinTokenTTL    time.Duration
	PublicBaseURL   string

	SweepSchedule  string
	AllowedOrigins []string
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		Provider: getEnvOrDefault("AI_PROVIDER", "gemini"),

		DatabaseURL: getEnvOrDefault("DATABASE_URL", "sqlite://interview_assistant.db"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		CacheStore:  getEnvOrDefault("CACHE_STORE", "database"),

		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		AnswerCacheTTL:     getEnvDuration("ANSWER_CACHE_TTL", time.Hour),
		ContextWindowSize:  getEnvInt("CONTEXT_WINDOW_SIZE", 10),

		CompletionTimeout:     getEnvDuration("COMPLETION_TIMEOUT", 5*time.Second),
		CompletionMaxTokens:   getEnvInt("COMPLETION_MAX_TOKENS", 256),
		CompletionTemperature: getEnvFloat("COMPLETION_TEMPERATURE", 0.2),

		JoinTokenSecret: getEnvOrDefault("JOIN_TOKEN_SECRET", devJoinTokenSecret),
		JoinTokenTTL:    getEnvDuration("JOIN_TOKEN_TTL", 10*time.Minute),
		PublicBaseURL:   strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		SweepSchedule:  getEnvOrDefault("SWEEP_SCHEDULE", "@every 5m"),
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// UsesDevSecret reports whether join tokens are signed with the built-in key.
func (c *Config) UsesDevSecret() bool {
	return c.JoinTokenSecret == devJoinTokenSecret
}

func validateConfig(config *Config) error {
	switch config.Provider {
	case "gemini", "deepseek":
	default:
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini, deepseek")
	}
	switch config.CacheStore {
	case "database":
	case "redis":
		if config.RedisAddr == "" {
			return errors.New("CACHE_STORE=redis requires REDIS_ADDR")
		}
	default:
		return errors.New("unsupported cache store: " + config.CacheStore)
	}
	if config.SessionTTL <= 0 || config.AnswerCacheTTL <= 0 || config.CompletionTimeout <= 0 || config.JoinTokenTTL <= 0 {
		return errors.New("durations must be positive")
	}
	if config.ContextWindowSize < 1 {
		return errors.New("CONTEXT_WINDOW_SIZE must be at least 1")
	}
	if config.CompletionMaxTokens < 1 {
		return errors.New("COMPLETION_MAX_TOKENS must be at least 1")
	}
	if config.CompletionTemperature < 0 || config.CompletionTemperature > 2 {
		return errors.New("COMPLETION_TEMPERATURE must be within [0, 2]")
	}
	// provider credentials are validated by the provider's own NewConfig()
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
