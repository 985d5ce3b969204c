package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis = "redis"
	BackendTable = "table"
)

type Config struct {
	ListenAddr   string
	Debug        bool
	Backend      string
	DefaultTitle string
	MaxBodyBytes int64
	CORSOrigins  []string
	// Redis backend, also used for the read cache in front of the table backend
	RedisConn string
	CacheTTL  time.Duration
	// Azure Table backend
	StorageConn string
	ListsTable  string
	// Suggestion collaborator, disabled unless URL and models are set
	SuggestURL     string
	SuggestKey     string
	SuggestModels  string
	SuggestTimeout time.Duration
}

// SuggestEnabled reports whether the suggestion endpoint has a collaborator.
func (c Config) SuggestEnabled() bool {
	return c.SuggestURL != "" && strings.TrimSpace(c.SuggestModels) != ""
}

// Load reads the environment. Malformed values are errors rather than
// silently replaced by defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    listenAddr(),
		Backend:       strings.ToLower(getenv("STORE_BACKEND", BackendRedis)),
		DefaultTitle:  getenv("DEFAULT_TITLE", "Shopping"),
		CORSOrigins:   splitList(getenv("CORS_ORIGINS", "*")),
		RedisConn:     os.Getenv("REDIS_CONNECTION_STRING"),
		StorageConn:   os.Getenv("STORAGE_CONNECTION_STRING"),
		ListsTable:    getenv("LISTS_TABLE", "lists"),
		SuggestURL:    os.Getenv("SUGGEST_API_URL"),
		SuggestKey:    os.Getenv("SUGGEST_API_KEY"),
		SuggestModels: os.Getenv("SUGGEST_MODELS"),
	}

	var err error
	if cfg.Debug, err = getenvBool("DEBUG", false); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes, err = getenvInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, errors.New("invalid MAX_BODY_BYTES: must be greater than zero")
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 0); err != nil {
		return Config{}, err
	}
	if cfg.SuggestTimeout, err = getenvDuration("SUGGEST_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SuggestTimeout <= 0 {
		return Config{}, errors.New("invalid SUGGEST_TIMEOUT: must be greater than zero")
	}

	switch cfg.Backend {
	case BackendRedis:
		if cfg.RedisConn == "" {
			return Config{}, errors.New("missing redis config")
		}
	case BackendTable:
		if cfg.StorageConn == "" || cfg.ListsTable == "" {
			return Config{}, errors.New("missing storage config")
		}
		if cfg.CacheTTL > 0 && cfg.RedisConn == "" {
			return Config{}, errors.New("CACHE_TTL requires REDIS_CONNECTION_STRING")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.Backend)
	}
	return cfg, nil
}

func listenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	if port, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && port != "" {
		return ":" + port
	}
	return ":8080"
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getenvInt64(key string, fallback int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return parsed, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
