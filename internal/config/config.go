package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvDevelopment is the APP_ENV value that exposes error stacks to clients.
const EnvDevelopment = "development"

// Config holds all service configuration loaded from environment variables.
type Config struct {
	ListenAddr      string        // HTTP listen address
	FrontendURL     string        // Allowed CORS origin
	Env             string        // "development" or "production"
	LogLevel        string        // zap level name
	MaxJSONBodyMB   int64         // Maximum JSON request body in megabytes
	RateLimitRPS    float64       // Per-client requests per second, 0 disables
	RateLimitBurst  int           // Per-client burst size
	TrustProxy      bool          // Take the client IP from X-Forwarded-For / X-Real-IP
	ShutdownTimeout time.Duration // Graceful shutdown deadline
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return c.Env == EnvDevelopment
}

// MaxJSONBodyBytes returns the JSON body cap in bytes.
func (c *Config) MaxJSONBodyBytes() int64 {
	return c.MaxJSONBodyMB << 20
}

// Load reads configuration from environment variables, falling back to
// defaults. Variables from a .env file in the working directory are loaded
// first without overriding ones already set.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	listen := envOrDefault("LISTEN_ADDR", "")
	if listen == "" {
		listen = ":" + envOrDefault("PORT", "3001")
	}
	env := envOrDefault("APP_ENV", envOrDefault("NODE_ENV", "production"))

	return &Config{
		ListenAddr:      listen,
		FrontendURL:     envOrDefault("FRONTEND_URL", "http://localhost:3000"),
		Env:             strings.ToLower(env),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		MaxJSONBodyMB:   envOrDefaultInt64("MAX_JSON_BODY_MB", 10),
		RateLimitRPS:    envOrDefaultFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:  int(envOrDefaultInt64("RATE_LIMIT_BURST", 20)),
		TrustProxy:      envOrDefaultBool("TRUST_PROXY", false),
		ShutdownTimeout: envOrDefaultDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDefaultBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
