package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envBackendURL = "CONTINUITY_BACKEND_URL"
	envAPIKey     = "CONTINUITY_API_KEY"
	envJWTSecret  = "CONTINUITY_JWT_SECRET"
	envPGDSN      = "CONTINUITY_PG_DSN"
	envRedisAddr  = "CONTINUITY_REDIS_ADDR"
	envHTTPAddr   = "CONTINUITY_HTTP_ADDR"
	envGRPCAddr   = "CONTINUITY_GRPC_ADDR"
	envRetryDelay = "CONTINUITY_RETRY_DELAY"
)

// ErrMissing is returned when a required variable is unset.
var ErrMissing = errors.New("config: required variable missing")

// Config holds server configuration.
type Config struct {
	BackendURL string
	APIKey     string
	JWTSecret  string
	PGDSN      string
	RedisAddr  string
	HTTPAddr   string
	GRPCAddr   string
	RetryDelay time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		BackendURL: strings.TrimRight(get(envBackendURL), "/"),
		APIKey:     get(envAPIKey),
		JWTSecret:  get(envJWTSecret),
		PGDSN:      get(envPGDSN),
		RedisAddr:  get(envRedisAddr),
		HTTPAddr:   get(envHTTPAddr),
		GRPCAddr:   get(envGRPCAddr),
		RetryDelay: 500 * time.Millisecond,
	}

	var missing []string
	if cfg.BackendURL == "" {
		missing = append(missing, envBackendURL)
	}
	if cfg.APIKey == "" {
		missing = append(missing, envAPIKey)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if raw := get(envRetryDelay); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("config: invalid %s %q", envRetryDelay, raw)
		}
		cfg.RetryDelay = d
	}
	return cfg, nil
}
