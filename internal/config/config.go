package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	HTTPAddr        string
	LogLevel        slog.Level
	GeoapifyAPIKey  string
	GeoapifyBaseURL string
	PlacesLimit     int
	PlacesTimeout   time.Duration
	CacheBackend    string
	CacheTTL        time.Duration
	SessionIdleTTL  time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CORSOrigins     []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, fills variables that are not already set.
// A missing API key is not an error: fetches fail and sessions fall back to
// the bundled places.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		GeoapifyAPIKey:  os.Getenv("GEOAPIFY_API_KEY"),
		GeoapifyBaseURL: envOr("GEOAPIFY_BASE_URL", "https://api.geoapify.com"),
		PlacesLimit:     50,
		PlacesTimeout:   10 * time.Second,
		CacheBackend:    strings.ToLower(envOr("CACHE_BACKEND", CacheMemory)),
		CacheTTL:        time.Hour,
		SessionIdleTTL:  30 * time.Minute,
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		CORSOrigins:     parseList(envOr("CORS_ORIGINS", "*")),
	}

	var err error
	if c.PlacesLimit, err = intEnv("PLACES_LIMIT", c.PlacesLimit); err != nil {
		return Config{}, err
	}
	if c.PlacesLimit < 1 || c.PlacesLimit > 500 {
		return Config{}, fmt.Errorf("invalid PLACES_LIMIT %d: must be between 1 and 500", c.PlacesLimit)
	}
	if c.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if c.PlacesTimeout, err = durationEnv("PLACES_TIMEOUT", c.PlacesTimeout); err != nil {
		return Config{}, err
	}
	if c.CacheTTL, err = durationEnv("CACHE_TTL", c.CacheTTL); err != nil {
		return Config{}, err
	}
	if c.SessionIdleTTL, err = durationEnv("SESSION_IDLE_TTL", c.SessionIdleTTL); err != nil {
		return Config{}, err
	}
	if c.SessionIdleTTL < 0 {
		return Config{}, fmt.Errorf("invalid SESSION_IDLE_TTL %s: must not be negative", c.SessionIdleTTL)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	switch c.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		return Config{}, fmt.Errorf("invalid CACHE_BACKEND %q", c.CacheBackend)
	}

	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, m := range strings.Split(s, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			items = append(items, m)
		}
	}
	return items
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
