package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a networked Store backed by Redis. Entries are stored
// as JSON documents under the derived key.
type RedisStore struct {
	redis     redis.UniversalClient
	retention time.Duration
}

// NewRedisStore creates a Redis-backed store.
//
// retention bounds how long an entry is kept in Redis regardless of its
// freshness, so stale entries stay available for revalidation. Zero keeps
// entries until they are replaced or deleted.
func NewRedisStore(redisClient redis.UniversalClient, retention time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: redis get: %v", ErrBackendUnavailable, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	data, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	// A single SET replaces the value atomically
	if err := s.redis.Set(ctx, key, data, s.retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: redis set: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// DeletePrefix implements Store. Matching keys are found with SCAN, so
// entries written concurrently may survive.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, globEscaper.Replace(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("%w: redis scan: %v", ErrBackendUnavailable, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("%w: redis del: %v", ErrBackendUnavailable, err)
	}
	return int(removed), nil
}

// globEscaper quotes the characters SCAN MATCH treats as patterns.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("delete").Inc()
		return nil, fmt.Errorf("%w: redis getdel: %v", ErrBackendUnavailable, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		// The key is gone either way
		return nil, err
	}
	return entry, nil
}
