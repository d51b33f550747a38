package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/http-cache-client/pkg/cache"
	"github.com/Sternrassler/http-cache-client/pkg/config"
	"github.com/Sternrassler/http-cache-client/pkg/logging"
	"github.com/Sternrassler/http-cache-client/pkg/transport"
	"github.com/Sternrassler/http-cache-client/pkg/translate"
	"github.com/Sternrassler/http-cache-client/pkg/xmlfilter"
)

// FromConfig assembles a Client from cfg: the selected cache store, an
// HTTP transport and the default translator registry. The returned close
// function releases the store's resources.
func FromConfig(ctx context.Context, cfg config.Config) (*Client, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(logging.ComponentStore)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("backend", cfg.CacheBackend).Msg("Cache store ready")

	backend, err := xmlfilter.ByName(cfg.XMLQueryBackend)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	registry, err := translate.Default(backend)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("build translator registry: %w", err)
	}

	retry := transport.NoRetry()
	if cfg.TransportMaxAttempts > 1 {
		retry = transport.DefaultRetryConfig()
		retry.MaxAttempts = cfg.TransportMaxAttempts
	}
	tr := transport.New(
		transport.WithDoer(&http.Client{Timeout: cfg.HTTPTimeout}),
		transport.WithRetry(retry),
	)

	c, err := New(Config{
		Store:       store,
		Transport:   tr,
		Registry:    registry,
		VaryHeaders: cfg.VaryHeaders,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return c, closeStore, nil
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.Store, func() error, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		// An unreachable Redis is not fatal: the executor bypasses the
		// cache until it comes back
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().
				Err(err).
				Str("addr", cfg.RedisAddr).
				Msg("Redis not reachable at startup")
		}
		return cache.NewRedisStore(redisClient, cfg.RedisRetention), redisClient.Close, nil

	case config.BackendSQLite:
		store, err := cache.OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return cache.NewMemoryStore(cfg.CacheMaxEntries), func() error { return nil }, nil
	}
}
