package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI    = "openai"
	ProviderBackboard = "backboard"
)

// Default upstream endpoints
const (
	DefaultLeetCodeURL   = "https://leetcode.com/graphql/"
	DefaultGFGURL        = "https://practiceapi.geeksforgeeks.org/api/v1/user/problems/submissions/"
	DefaultCodeforcesURL = "https://codeforces.com/api/user.status"
	DefaultBackboardURL  = "https://app.backboard.io/api"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// Config holds the relay configuration
type Config struct {
	Port      string
	StaticDir string
	LogLevel  slog.Level

	Upstreams UpstreamConfig
	AI        AIConfig

	RateLimitPerMin int
	EnableHSTS      bool
}

// UpstreamConfig holds the coding-judge platform endpoints
type UpstreamConfig struct {
	LeetCodeURL   string
	GFGURL        string
	CodeforcesURL string
	Timeout       time.Duration // zero leaves the request bound only by the caller's context
}

// AIConfig selects and configures the analysis backend.
// Keys are only ever read from the environment.
type AIConfig struct {
	Provider string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	BackboardKey      string
	BackboardBaseURL  string
	BackboardProvider string
	BackboardModel    string
}

// Enabled reports whether the selected provider has credentials
func (a AIConfig) Enabled() bool {
	switch a.Provider {
	case ProviderBackboard:
		return a.BackboardKey != ""
	default:
		return a.OpenAIKey != ""
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	timeout, err := getEnvDuration("UPSTREAM_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "3000"),
		StaticDir: getEnvOrDefault("STATIC_DIR", "."),
		LogLevel:  parseLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		Upstreams: UpstreamConfig{
			LeetCodeURL:   getEnvOrDefault("LEETCODE_URL", DefaultLeetCodeURL),
			GFGURL:        getEnvOrDefault("GFG_URL", DefaultGFGURL),
			CodeforcesURL: getEnvOrDefault("CODEFORCES_URL", DefaultCodeforcesURL),
			Timeout:       timeout,
		},
		AI: AIConfig{
			Provider:          strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI)),
			OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:       getEnvOrDefault("OPENAI_MODEL", DefaultOpenAIModel),
			OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
			BackboardKey:      os.Getenv("BACKBOARD_API_KEY"),
			BackboardBaseURL:  getEnvOrDefault("BACKBOARD_BASE_URL", DefaultBackboardURL),
			BackboardProvider: os.Getenv("BACKBOARD_LLM_PROVIDER"),
			BackboardModel:    os.Getenv("BACKBOARD_MODEL"),
		},
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 0),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Upstreams.Timeout < 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must not be negative")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative")
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderBackboard:
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}
	return nil
}

// Addr returns the listen address for the configured port
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
