//go:build integration

package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/http-cache-client/internal/testutil"
	"github.com/Sternrassler/http-cache-client/pkg/cache"
	"github.com/Sternrassler/http-cache-client/pkg/transport"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetHandler("/widgets/1", testutil.NewConditionalHandler(`"v1"`, `{"id":1}`, 2*time.Second))

	store := cache.NewRedisStore(redisClient, time.Minute)
	c, err := New(Config{Store: store, Transport: transport.New()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	target := mock.URL() + "/widgets/1"

	// Phase 1: miss, stored in Redis
	resp, err := c.Get(ctx, target, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.CacheStatus != StatusMiss {
		t.Errorf("CacheStatus = %s, want %s", resp.CacheStatus, StatusMiss)
	}

	// Phase 2: fresh hit, origin untouched
	resp, err = c.Get(ctx, target, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.CacheStatus != StatusHit {
		t.Errorf("CacheStatus = %s, want %s", resp.CacheStatus, StatusHit)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("origin requests = %d, want 1", mock.RequestCount())
	}

	// Phase 3: stale, revalidated with 304
	time.Sleep(2500 * time.Millisecond)
	resp, err = c.Get(ctx, target, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.CacheStatus != StatusRevalidated || string(resp.Body) != `{"id":1}` {
		t.Errorf("response = %s %q", resp.CacheStatus, resp.Body)
	}
	if mock.ConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", mock.ConditionalCount())
	}

	// Phase 4: DELETE invalidates the Redis entry
	mock.SetHandler("/widgets/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if _, err := c.Delete(ctx, target, nil); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	key, err := cache.DeriveKey(http.MethodGet, target, nil, nil)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("entry should be invalidated, got err = %v", err)
	}
}

func TestIntegration_RedisOutage(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)

	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetResponse("/a", testutil.NewCacheableResponse(`{"ok":true}`, time.Minute))

	c, err := New(Config{Store: cache.NewRedisStore(redisClient, time.Minute), Transport: transport.New()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cleanup()

	resp, err := c.Get(context.Background(), mock.URL()+"/a", nil)
	if err != nil {
		t.Fatalf("outage must degrade to a direct request, got %v", err)
	}
	if resp.CacheStatus != StatusBypass {
		t.Errorf("CacheStatus = %s, want %s", resp.CacheStatus, StatusBypass)
	}
}
