package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func makeEntry(key, body string, ttl time.Duration) *Entry {
	return &Entry{
		Key:        key,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
		StoredAt:   time.Now(),
		TTL:        durationPtr(ttl),
		ETag:       `"` + body + `"`,
	}
}

// testStoreContract runs the behaviour every Store must share.
func testStoreContract(t *testing.T, store Store) {
	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(context.Background(), "missing")
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get() error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		ctx := context.Background()
		entry := makeEntry("k1", `{"id":1}`, 5*time.Minute)

		if err := store.Set(ctx, "k1", entry); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, err := store.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got.Body) != `{"id":1}` {
			t.Errorf("Body = %s, want %s", got.Body, `{"id":1}`)
		}
		if got.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want 200", got.StatusCode)
		}
		if got.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", got.Header.Get("Content-Type"))
		}
		if got.ETag != entry.ETag {
			t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
		}
		if got.TTL == nil || *got.TTL != 5*time.Minute {
			t.Errorf("TTL = %v, want 5m", got.TTL)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Set(ctx, "k2", makeEntry("k2", "first", time.Minute)); err != nil {
			t.Fatal(err)
		}
		if err := store.Set(ctx, "k2", makeEntry("k2", "second", time.Minute)); err != nil {
			t.Fatal(err)
		}
		got, err := store.Get(ctx, "k2")
		if err != nil {
			t.Fatal(err)
		}
		if string(got.Body) != "second" {
			t.Errorf("Body = %s, want second", got.Body)
		}
	})

	t.Run("delete returns previous value", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Set(ctx, "k3", makeEntry("k3", "gone", time.Minute)); err != nil {
			t.Fatal(err)
		}

		prev, err := store.Delete(ctx, "k3")
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if string(prev.Body) != "gone" {
			t.Errorf("Delete() returned body %s, want gone", prev.Body)
		}

		if _, err := store.Get(ctx, "k3"); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
		}
		if _, err := store.Delete(ctx, "k3"); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("second Delete() error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("stale entries are kept", func(t *testing.T) {
		ctx := context.Background()
		entry := makeEntry("k4", "stale", 0)
		entry.StoredAt = time.Now().Add(-time.Hour)
		if err := store.Set(ctx, "k4", entry); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Get(ctx, "k4"); err != nil {
			t.Errorf("Get() stale entry error = %v, want nil", err)
		}
	})

	t.Run("rejects unstorable entries", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Set(ctx, "k5", nil); !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Set(nil) error = %v, want ErrInvalidEntry", err)
		}
		bare := &Entry{StatusCode: 200, Body: []byte("x")}
		if err := store.Set(ctx, "k5", bare); !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Set(bare) error = %v, want ErrInvalidEntry", err)
		}
		if _, err := store.Get(ctx, "k5"); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get() after rejected Set error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("stored entry is isolated from caller", func(t *testing.T) {
		ctx := context.Background()
		entry := makeEntry("k6", "original", time.Minute)
		if err := store.Set(ctx, "k6", entry); err != nil {
			t.Fatal(err)
		}
		entry.Body[0] = 'X'
		entry.Header.Set("Content-Type", "text/plain")

		got, err := store.Get(ctx, "k6")
		if err != nil {
			t.Fatal(err)
		}
		if string(got.Body) != "original" || got.Header.Get("Content-Type") != "application/json" {
			t.Error("store entry was mutated through the caller's reference")
		}
	})

	t.Run("delete prefix removes every variant", func(t *testing.T) {
		ctx := context.Background()
		base := "httpcache:GET:https://origin.test/w?f=[a]*"
		variants := []string{base + ":Accept=application/json", base + ":Accept=text/xml"}
		kept := []string{"httpcache:GET:https://origin.test/w?f=[b]", "httpcache:HEAD:https://origin.test/w?f=[a]*:Accept=text/xml"}

		for _, key := range append(append([]string{}, variants...), kept...) {
			if err := store.Set(ctx, key, makeEntry(key, "v", time.Minute)); err != nil {
				t.Fatalf("Set(%s) error = %v", key, err)
			}
		}

		removed, err := store.DeletePrefix(ctx, base+":")
		if err != nil {
			t.Fatalf("DeletePrefix() error = %v", err)
		}
		if removed != len(variants) {
			t.Errorf("DeletePrefix() removed %d, want %d", removed, len(variants))
		}
		for _, key := range variants {
			if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Get(%s) after DeletePrefix error = %v, want ErrCacheMiss", key, err)
			}
		}
		for _, key := range kept {
			if _, err := store.Get(ctx, key); err != nil {
				t.Errorf("Get(%s) error = %v, want entry kept", key, err)
			}
		}

		if removed, err := store.DeletePrefix(ctx, base+":"); err != nil || removed != 0 {
			t.Errorf("second DeletePrefix() = %d, %v, want 0, nil", removed, err)
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("concurrent-%d", i%4)
				body := fmt.Sprintf("body-%d", i)
				if err := store.Set(ctx, key, makeEntry(key, body, time.Minute)); err != nil {
					t.Errorf("Set() error = %v", err)
					return
				}
				got, err := store.Get(ctx, key)
				if err != nil && !errors.Is(err, ErrCacheMiss) {
					t.Errorf("Get() error = %v", err)
					return
				}
				// A reader sees some complete entry, never a mix
				if got != nil && got.ETag != `"`+string(got.Body)+`"` {
					t.Errorf("torn entry: etag %s body %s", got.ETag, got.Body)
				}
				if i%5 == 0 {
					_, _ = store.Delete(ctx, key)
				}
			}(i)
		}
		wg.Wait()
	})
}
