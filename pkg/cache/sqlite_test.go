package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	store := openTestSQLite(t, filepath.Join(t.TempDir(), "cache.db"))
	testStoreContract(t, store)
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := OpenSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set(ctx, "k", makeEntry("k", "persisted", time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := openTestSQLite(t, path)
	got, err := second.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got.Body) != "persisted" {
		t.Errorf("Body = %s, want persisted", got.Body)
	}
}

func TestSQLiteStore_SizeTracksReplacements(t *testing.T) {
	store := openTestSQLite(t, filepath.Join(t.TempDir(), "cache.db"))
	ctx := context.Background()
	gauge := CacheSize.WithLabelValues("sqlite")
	before := gaugeValue(t, gauge)

	for i := 0; i < 3; i++ {
		if err := store.Set(ctx, "only", makeEntry("only", "same-size", time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	afterSets := gaugeValue(t, gauge)

	data, err := encodeEntry(makeEntry("only", "same-size", time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	// StoredAt differs between encodings, so allow a few bytes of slack
	if grown := afterSets - before; grown < float64(len(data))-8 || grown > float64(len(data))+8 {
		t.Errorf("gauge grew by %v after replacing one entry, want about %d", grown, len(data))
	}

	if _, err := store.Delete(ctx, "only"); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(t, gauge); got != before {
		t.Errorf("gauge = %v after delete, want %v", got, before)
	}
}

func gaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := gauge.Write(&m); err != nil {
		t.Fatalf("read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}
