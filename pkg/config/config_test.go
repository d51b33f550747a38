package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/http-cache-client/pkg/logging"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, 10000, cfg.CacheMaxEntries)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.RedisRetention)
	assert.Equal(t, "first", cfg.XMLQueryBackend)
	assert.Empty(t, cfg.VaryHeaders)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 1, cfg.TransportMaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"CACHE_BACKEND":          "redis",
		"REDIS_ADDR":             "cache:6380",
		"REDIS_DB":               "3",
		"REDIS_RETENTION":        "90m",
		"XML_QUERY_BACKEND":      "B",
		"VARY_HEADERS":           "Accept,Accept-Language",
		"HTTP_TIMEOUT":           "5s",
		"TRANSPORT_MAX_ATTEMPTS": "3",
		"LOG_LEVEL":              "debug",
		"LOG_PRETTY":             "true",
		"PORT":                   "9090",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.CacheBackend)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.RedisRetention)
	assert.Equal(t, "B", cfg.XMLQueryBackend)
	assert.Equal(t, []string{"Accept", "Accept-Language"}, cfg.VaryHeaders)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.TransportMaxAttempts)
	assert.Equal(t, "9090", cfg.Port)

	logCfg := cfg.Logging()
	assert.Equal(t, logging.LevelDebug, logCfg.Level)
	assert.True(t, logCfg.Pretty)
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"HTTP_TIMEOUT": "soon"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"CACHE_MAX_ENTRIES": "many"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := LoadFrom(map[string]string{})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"unknown backend", func(c *Config) { c.CacheBackend = "memcached" }, "CACHE_BACKEND"},
		{"negative max entries", func(c *Config) { c.CacheMaxEntries = -1 }, "CACHE_MAX_ENTRIES"},
		{"redis without address", func(c *Config) { c.CacheBackend = BackendRedis; c.RedisAddr = "" }, "REDIS_ADDR"},
		{"negative retention", func(c *Config) { c.RedisRetention = -time.Second }, "REDIS_RETENTION"},
		{"sqlite without path", func(c *Config) { c.CacheBackend = BackendSQLite; c.SQLitePath = "" }, "SQLITE_PATH"},
		{"unknown xml backend", func(c *Config) { c.XMLQueryBackend = "libxml2" }, "XML_QUERY_BACKEND"},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, "HTTP_TIMEOUT"},
		{"zero attempts", func(c *Config) { c.TransportMaxAttempts = 0 }, "TRANSPORT_MAX_ATTEMPTS"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "LOG_LEVEL"},
		{"empty port", func(c *Config) { c.Port = " " }, "PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := valid()
		cfg.CacheBackend = "x"
		cfg.Port = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CACHE_BACKEND")
		assert.Contains(t, err.Error(), "PORT")
	})
}
