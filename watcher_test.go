package jerseyfolio

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/eringen/jerseyfolio/catalog"
)

func startTestWatcher(t *testing.T, store *Store) <-chan Document {
	t.Helper()
	changes := make(chan Document, 8)
	w, err := NewDataWatcher(store, func(d Document) { changes <- d }, nil)
	if err != nil {
		t.Fatalf("NewDataWatcher: %v", err)
	}
	w.debounceDur = 20 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return changes
}

func TestDataWatcherReportsExternalEdits(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	// Registered first so it runs after the watcher and store cleanups.
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })
	store, _ := setupTestStore(t)
	changes := startTestWatcher(t, store)

	if err := os.WriteFile(store.Path(DocTags), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case doc := <-changes:
		if doc != DocTags {
			t.Errorf("expected tags.json, got %s", doc)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported for an external edit")
	}
}

func TestDataWatcherSuppressesOwnWrites(t *testing.T) {
	store, _ := setupTestStore(t)
	changes := startTestWatcher(t, store)

	if err := store.SaveJerseys([]catalog.Jersey{{ID: "1", Title: "Own"}}, "own"); err != nil {
		t.Fatal(err)
	}

	select {
	case doc := <-changes:
		t.Fatalf("own write reported as external change: %s", doc)
	case <-time.After(500 * time.Millisecond):
	}
}
