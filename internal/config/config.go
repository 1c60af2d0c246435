package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort  int
	AppEnv      string
	LogLevel    string
	DatabaseURL string

	JWTSecret    string
	JWTExpiresIn time.Duration

	CORSOrigins []string
	TrustProxy  bool

	// Verdict provider / throttling
	RedisURL          string
	VerdictMode       string
	VerdictTimeout    time.Duration
	RateLimitWindow   time.Duration
	RateLimitGuest    int
	RateLimitUser     int
	RateLimitAdmin    int
	BotBlockedAgents  []string
	BotAllowedAgents  []string
	BlockEmptyAgent   bool
	AllowRoleOnSignup bool

	MetricsEnabled bool
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 3000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:  port,
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", "file:acquisitions.db"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RedisURL:    getEnv("REDIS_URL", ""),
		VerdictMode: strings.ToLower(getEnv("VERDICT_MODE", "live")),
		BotBlockedAgents: getEnvList("BOT_BLOCKED_AGENTS", defaultBlockedAgents),
		BotAllowedAgents: getEnvList("BOT_ALLOWED_AGENTS", defaultAllowedAgents),
	}

	if cfg.JWTExpiresIn, err = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.VerdictTimeout, err = getEnvDuration("VERDICT_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitGuest, err = getEnvInt("RATE_LIMIT_GUEST", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitUser, err = getEnvInt("RATE_LIMIT_USER", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitAdmin, err = getEnvInt("RATE_LIMIT_ADMIN", 20); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = getEnvBool("TRUST_PROXY", false); err != nil {
		return nil, err
	}
	if cfg.BlockEmptyAgent, err = getEnvBool("BOT_BLOCK_EMPTY_AGENT", false); err != nil {
		return nil, err
	}
	if cfg.AllowRoleOnSignup, err = getEnvBool("ALLOW_ROLE_ON_SIGNUP", false); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.VerdictMode != "live" && c.VerdictMode != "dry_run" {
		return fmt.Errorf("VERDICT_MODE must be live or dry_run, got %q", c.VerdictMode)
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be > 0")
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// defaultBlockedAgents avoids a bare "bot", which also matches device names
// such as CUBOT.
var defaultBlockedAgents = []string{
	"curl", "wget", "python-requests", "python-urllib", "scrapy", "httpclient",
	"go-http-client", "headlesschrome", "phantomjs", "selenium",
	"bot/", "bot;", "+http", "spider", "crawler",
}

var defaultAllowedAgents = []string{"googlebot", "bingbot", "duckduckbot"}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
