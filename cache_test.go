package jerseyfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/eringen/jerseyfolio/catalog"
)

func TestCatalogCacheServesUntilInvalidated(t *testing.T) {
	store, _ := setupTestStore(t)
	if err := store.SaveJerseys([]catalog.Jersey{{ID: "1", Title: "One"}}, "seed"); err != nil {
		t.Fatal(err)
	}
	cache := NewCatalogCache(store, time.Hour)

	snap, err := cache.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Jerseys) != 1 || len(snap.Categories) == 0 || len(snap.Tags) == 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if err := store.SaveJerseys([]catalog.Jersey{{ID: "1", Title: "One"}, {ID: "2", Title: "Two"}}, "add"); err != nil {
		t.Fatal(err)
	}
	snap, _ = cache.Snapshot()
	if len(snap.Jerseys) != 1 {
		t.Errorf("expected the cached snapshot before invalidation, got %d jerseys", len(snap.Jerseys))
	}

	cache.Invalidate()
	snap, _ = cache.Snapshot()
	if len(snap.Jerseys) != 2 {
		t.Errorf("expected a fresh load after invalidation, got %d jerseys", len(snap.Jerseys))
	}
}

func TestCatalogCacheExpires(t *testing.T) {
	store, _ := setupTestStore(t)
	cache := NewCatalogCache(store, time.Nanosecond)
	if _, err := cache.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveJerseys([]catalog.Jersey{{ID: "9", Title: "Nine"}}, "add"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	j, err := cache.Jersey("9")
	if err != nil {
		t.Fatalf("expected the expired cache to reload: %v", err)
	}
	if j.Title != "Nine" {
		t.Errorf("unexpected jersey %+v", j)
	}
}

func TestCatalogCacheJerseyNotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	cache := NewCatalogCache(store, time.Hour)
	if _, err := cache.Jersey("missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
