// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	DBPath string

	LogLevel  string
	LogFormat string // "text" or "json"

	// JWTSecret enables bearer-token scope verification when set.
	// Empty means the X-Org-ID header is trusted as-is.
	JWTSecret string

	GridCacheTTL     time.Duration
	GridWarmInterval time.Duration // 0 disables the background warmer

	RateLimitRPS   float64 // 0 disables throttling
	RateLimitBurst int

	AllowedOrigins []string

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// Load reads the process environment after applying any .env files.
// Variables already set in the environment win over the files.
func Load(files ...string) *Config {
	loaded := godotenv.Load(files...) == nil

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "./data/commission.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		GridCacheTTL:     getEnvDuration("GRID_CACHE_TTL", 5*time.Minute),
		GridWarmInterval: getEnvDuration("GRID_WARM_INTERVAL", time.Minute),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 100),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		EnvFileLoaded:    loaded,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return f
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "5m") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
