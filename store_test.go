package jerseyfolio

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/eringen/jerseyfolio/catalog"
)

// setupTestStore creates a Store with revisions in a temporary directory.
func setupTestStore(t *testing.T) (*Store, *History) {
	t.Helper()
	dir := t.TempDir()
	history, err := OpenHistory(filepath.Join(dir, "revisions.db"), 10)
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { history.Close() })
	store, err := NewStore(filepath.Join(dir, "data"), history)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store, history
}

func writeDoc(t *testing.T, s *Store, doc Document, content string) {
	t.Helper()
	if err := os.WriteFile(s.Path(doc), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", doc, err)
	}
}

func TestNewStoreSeedsDefaults(t *testing.T) {
	store, _ := setupTestStore(t)

	items, err := store.Jerseys()
	if err != nil {
		t.Fatalf("Jerseys: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no seeded jerseys, got %d", len(items))
	}
	cats, err := store.Categories()
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != len(defaultCategories) || cats[0].ID != "domicile" {
		t.Errorf("unexpected seeded categories: %+v", cats)
	}
	tags, err := store.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != len(defaultTags) {
		t.Errorf("expected %d seeded tags, got %d", len(defaultTags), len(tags))
	}

	raw, err := store.Raw(DocCategories)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if !strings.Contains(string(raw), "Extérieur") {
		t.Errorf("expected UTF-8 output without escapes, got %s", raw)
	}
	if !strings.HasPrefix(string(raw), "[\n  {") {
		t.Errorf("expected 2-space indented output, got %q", raw[:10])
	}
}

func TestNewStoreKeepsExistingDocuments(t *testing.T) {
	store, history := setupTestStore(t)
	writeDoc(t, store, DocTags, `[{"id":"x","name":"X","color":"#000"}]`)

	again, err := NewStore(store.Dir(), history)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tags, err := again.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 1 || tags[0].ID != "x" {
		t.Errorf("existing document was reseeded: %+v", tags)
	}
}

func TestTitleEditRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	original := `[
  {"id":"1","title":"Domicile 2024","name":"Domicile 2024","year":"2024","category":["domicile","vintage"],"images":["a.jpg"],"sku":"X-1","sizes":{"S":2,"M":0}},
  {"id":"2","title":"Away <b>","year":2023,"category":"exterieur","images":["b.jpg"],"views":7}
]`
	writeDoc(t, store, DocJerseys, original)

	items, err := store.Jerseys()
	if err != nil {
		t.Fatalf("Jerseys: %v", err)
	}
	items[0].SetTitle("Home 2024")
	if err := store.SaveJerseys(items, "test"); err != nil {
		t.Fatalf("SaveJerseys: %v", err)
	}

	var before, after []map[string]any
	if err := json.Unmarshal([]byte(original), &before); err != nil {
		t.Fatal(err)
	}
	raw, _ := store.Raw(DocJerseys)
	if err := json.Unmarshal(raw, &after); err != nil {
		t.Fatalf("saved document is not JSON: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("expected 2 jerseys, got %d", len(after))
	}
	for _, field := range []string{"title", "name"} {
		if after[0][field] != "Home 2024" {
			t.Errorf("%s = %v, want Home 2024", field, after[0][field])
		}
		delete(before[0], field)
		delete(after[0], field)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("fields other than the title changed:\nbefore %v\nafter  %v", before, after)
	}
	if _, isString := after[0]["year"].(string); !isString {
		t.Errorf("string year changed kind: %T", after[0]["year"])
	}
	if _, isNumber := after[1]["year"].(float64); !isNumber {
		t.Errorf("numeric year changed kind: %T", after[1]["year"])
	}
	if !strings.Contains(string(raw), "Away <b>") {
		t.Errorf("expected no HTML escaping in %s", raw)
	}
}

func TestSaveJerseysRecordsRevision(t *testing.T) {
	store, history := setupTestStore(t)
	items := []catalog.Jersey{{ID: "1", Title: "First", Images: []string{"a.jpg"}}}
	if err := store.SaveJerseys(items, "first"); err != nil {
		t.Fatalf("SaveJerseys: %v", err)
	}
	items[0].SetTitle("Second")
	if err := store.SaveJerseys(items, "second"); err != nil {
		t.Fatalf("SaveJerseys: %v", err)
	}

	revs, err := history.List(t.Context(), DocJerseys)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}
	if revs[0].Reason != "second" || revs[0].Items != 1 {
		t.Errorf("unexpected newest revision: %+v", revs[0])
	}
	rev, err := history.Get(t.Context(), revs[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(string(rev.Data), "First") {
		t.Errorf("expected the replaced document in the revision, got %s", rev.Data)
	}
}

func TestUpdateJerseysErrorLeavesDocument(t *testing.T) {
	store, _ := setupTestStore(t)
	if err := store.SaveJerseys([]catalog.Jersey{{ID: "1", Title: "Keep"}}, "seed"); err != nil {
		t.Fatal(err)
	}
	before, _ := store.Raw(DocJerseys)

	boom := errors.New("boom")
	err := store.UpdateJerseys("fail", func(items []catalog.Jersey) ([]catalog.Jersey, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	after, _ := store.Raw(DocJerseys)
	if string(before) != string(after) {
		t.Errorf("document changed after a failed update")
	}
}

const mixedJerseys = `[
  {"id": "1", "title": "Home", "images": ["1.jpg"]},
  {"id": "2", "title": "Broken", "tags": "vintage"},
  {"id": "3", "title": "Away", "images": ["3.jpg"]}
]`

func TestJerseysSkipsMalformedItem(t *testing.T) {
	store, _ := setupTestStore(t)
	writeDoc(t, store, DocJerseys, mixedJerseys)

	items, err := store.Jerseys()
	if err != nil {
		t.Fatalf("Jerseys: %v", err)
	}
	if len(items) != 2 || items[0].ID != "1" || items[1].ID != "3" {
		t.Fatalf("unexpected jerseys: %+v", items)
	}
}

func TestUpdateJerseysKeepsMalformedItem(t *testing.T) {
	store, _ := setupTestStore(t)
	writeDoc(t, store, DocJerseys, mixedJerseys)

	err := store.UpdateJerseys("retitle", func(items []catalog.Jersey) ([]catalog.Jersey, error) {
		items[1].Title = "Away 2024"
		return items, nil
	})
	if err != nil {
		t.Fatalf("UpdateJerseys: %v", err)
	}

	data, _ := store.Raw(DocJerseys)
	var raws []map[string]any
	if err := json.Unmarshal(data, &raws); err != nil {
		t.Fatalf("document is not an array: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("expected 3 elements, got %d: %s", len(raws), data)
	}
	if raws[1]["id"] != "2" || raws[1]["tags"] != "vintage" {
		t.Errorf("malformed element not kept in place: %v", raws[1])
	}
	if raws[2]["title"] != "Away 2024" {
		t.Errorf("edit lost: %v", raws[2])
	}
}

func TestWriteRawRejectsNonArray(t *testing.T) {
	store, _ := setupTestStore(t)
	err := store.WriteRaw(DocTags, []byte(`{"id":"x"}`), "bad")
	if !errors.Is(err, catalog.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestWroteRecently(t *testing.T) {
	store, _ := setupTestStore(t)
	if store.WroteRecently(DocTags, time.Minute) {
		t.Fatal("seeding must not count as a recent write")
	}
	err := store.UpdateTags("touch", func(defs []catalog.Tag) ([]catalog.Tag, error) { return defs, nil })
	if err != nil {
		t.Fatal(err)
	}
	if !store.WroteRecently(DocTags, time.Minute) {
		t.Error("expected a recent write of tags.json")
	}
	if store.WroteRecently(DocJerseys, time.Minute) {
		t.Error("jerseys.json was not written")
	}
}

func TestParseDocument(t *testing.T) {
	tests := []struct {
		in   string
		want Document
		ok   bool
	}{
		{"jerseys.json", DocJerseys, true},
		{"categories", DocCategories, true},
		{"tags.json", DocTags, true},
		{"users.json", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDocument(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDocument(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
