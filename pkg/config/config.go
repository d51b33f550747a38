// Package config loads the caching client configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Sternrassler/http-cache-client/pkg/logging"
	"github.com/Sternrassler/http-cache-client/pkg/xmlfilter"
)

// Cache backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds the process configuration.
type Config struct {
	// Cache store selection
	CacheBackend    string `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheMaxEntries int    `env:"CACHE_MAX_ENTRIES" envDefault:"10000"`

	// Redis backend
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RedisRetention time.Duration `env:"REDIS_RETENTION" envDefault:"24h"`

	// SQLite backend
	SQLitePath string `env:"SQLITE_PATH" envDefault:"httpcache.db"`

	// XML query backend: first, all or none (aliases A, B, C)
	XMLQueryBackend string `env:"XML_QUERY_BACKEND" envDefault:"first"`

	// Request headers that take part in cache keys
	VaryHeaders []string `env:"VARY_HEADERS" envSeparator:","`

	// Transport
	HTTPTimeout          time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	TransportMaxAttempts int           `env:"TRANSPORT_MAX_ATTEMPTS" envDefault:"1"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// cache-proxy listen port
	Port string `env:"PORT" envDefault:"8080"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given environment instead of the process one.
func LoadFrom(environment map[string]string) (Config, error) {
	return load(env.Options{Environment: environment})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown selections and out-of-range values.
func (c Config) Validate() error {
	var errs []error

	switch c.CacheBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be one of memory, redis, sqlite (got %q)", c.CacheBackend))
	}

	if c.CacheMaxEntries < 0 {
		errs = append(errs, fmt.Errorf("CACHE_MAX_ENTRIES must be >= 0 (got %d)", c.CacheMaxEntries))
	}
	if c.CacheBackend == BackendRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
	}
	if c.RedisRetention < 0 {
		errs = append(errs, fmt.Errorf("REDIS_RETENTION must be >= 0 (got %s)", c.RedisRetention))
	}
	if c.CacheBackend == BackendSQLite && c.SQLitePath == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
	}
	if _, err := xmlfilter.ByName(c.XMLQueryBackend); err != nil {
		errs = append(errs, fmt.Errorf("XML_QUERY_BACKEND: %w", err))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be > 0 (got %s)", c.HTTPTimeout))
	}
	if c.TransportMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("TRANSPORT_MAX_ATTEMPTS must be >= 1 (got %d)", c.TransportMaxAttempts))
	}
	if !logging.ValidLevel(logging.LogLevel(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}

	return errors.Join(errs...)
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
