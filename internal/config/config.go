package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	APIURL      string
	APIUser     string
	APIPassword string `json:"-"`
	APIToken    string `json:"-"`
	APIRPS      float64

	RulesPath string
	Workers   int

	RedisAddr       string
	SessionCacheTTL time.Duration

	DatabaseURL string `json:"-"`

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string `json:"-"`
	S3Bucket    string
	S3Prefix    string

	ListenAddr              string
	APIKey                  string `json:"-"`
	CORSAllowedOrigins      []string
	RateLimitRequestsPerSec float64
	RateLimitBurst          int

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		APIURL:      os.Getenv("SESSIONCHECK_API_URL"),
		APIUser:     os.Getenv("SESSIONCHECK_API_USER"),
		APIPassword: os.Getenv("SESSIONCHECK_API_PASSWORD"),
		APIToken:    os.Getenv("SESSIONCHECK_API_TOKEN"),
		APIRPS:      envOrDefaultFloat("SESSIONCHECK_API_RPS", 5),

		RulesPath: envOrDefault("SESSIONCHECK_RULES", "rules.yaml"),
		Workers:   envOrDefaultInt("SESSIONCHECK_WORKERS", 4),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		SessionCacheTTL: time.Duration(envOrDefaultInt("SESSION_CACHE_TTL_SECONDS", 300)) * time.Second,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		S3Region:    envOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: envOrDefault("S3_ACCESS_KEY", ""),
		S3SecretKey: envOrDefault("S3_SECRET_KEY", ""),
		S3Bucket:    envOrDefault("S3_BUCKET", ""),
		S3Prefix:    envOrDefault("S3_PREFIX", "exports"),

		ListenAddr:              envOrDefault("LISTEN_ADDR", ":8095"),
		APIKey:                  os.Getenv("SESSIONCHECK_API_KEY"),
		CORSAllowedOrigins:      parseCSV(envOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitRequestsPerSec: envOrDefaultFloat("RATE_LIMIT_REQUESTS_PER_SEC", 25),
		RateLimitBurst:          envOrDefaultInt("RATE_LIMIT_BURST", 50),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),
	}
}

// RemoteEnabled reports whether sessions come from the telemetry API.
func (c Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.APIURL) != ""
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	values := strings.Split(value, ",")
	result := make([]string, 0, len(values))
	for _, item := range values {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}

	if len(result) == 0 {
		return []string{"*"}
	}
	return result
}

func envOrDefaultInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var parsed float64
	if _, err := fmt.Sscanf(value, "%f", &parsed); err != nil {
		return fallback
	}
	return parsed
}
