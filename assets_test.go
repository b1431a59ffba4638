package jerseyfolio

import (
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/eringen/jerseyfolio/catalog"
)

// writeAsset creates an empty file under the assets directory.
func writeAsset(t *testing.T, assetsDir, rel string) {
	t.Helper()
	p := filepath.Join(assetsDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestImageExists(t *testing.T) {
	cfg := SiteConfig{AssetsDir: t.TempDir()}
	writeAsset(t, cfg.AssetsDir, "images/jerseys/home.jpg")
	writeAsset(t, cfg.AssetsDir, "images/thumbnails/thumb.jpg")

	tests := []struct {
		ref  string
		want bool
	}{
		{"home.jpg", true},
		{"thumb.jpg", true},
		{"assets/images/jerseys/home.jpg", true},
		{"/assets/images/thumbnails/thumb.jpg", true},
		{"/assets/images/jerseys/thumb.jpg", false},
		{"gone.jpg", false},
		{"assets/../home.jpg", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := cfg.ImageExists(tt.ref); got != tt.want {
			t.Errorf("ImageExists(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestCheckImages(t *testing.T) {
	cfg := SiteConfig{AssetsDir: t.TempDir()}
	writeAsset(t, cfg.AssetsDir, "images/jerseys/home.jpg")
	writeAsset(t, cfg.AssetsDir, "images/thumbnails/home.jpg")
	writeAsset(t, cfg.AssetsDir, "images/jerseys/old.jpg")
	writeAsset(t, cfg.AssetsDir, "images/thumbnails/stale.png")
	writeAsset(t, cfg.AssetsDir, "images/jerseys/.gitkeep")

	items := []catalog.Jersey{
		{ID: "1", Title: "Home", Images: []string{"home.jpg"}, Thumbnail: "home.jpg"},
		{ID: "2", Title: "Away", Images: []string{"away.jpg"}},
		{ID: "3", Title: "Notes", Images: []string{"notes.txt"}},
		{ID: "4", Title: "Bare"},
		{ID: "5", Title: "Remote", Images: []string{"https://cdn.example.com/5.jpg"}},
	}
	rep, err := cfg.CheckImages(items)
	if err != nil {
		t.Fatalf("CheckImages: %v", err)
	}
	if rep.Checked != 5 || rep.Valid != 2 {
		t.Errorf("checked %d valid %d, want 5 and 2", rep.Checked, rep.Valid)
	}
	want := []catalog.ImageProblem{
		{ID: "2", Title: "Away", File: "away.jpg", Reason: catalog.ImageMissingFile},
		{ID: "3", Title: "Notes", File: "notes.txt", Reason: catalog.ImageBadExtension},
		{ID: "4", Title: "Bare", Reason: catalog.ImageNone},
	}
	if !reflect.DeepEqual(rep.Problems, want) {
		t.Errorf("problems = %+v, want %+v", rep.Problems, want)
	}
	wantOrphans := []string{"images/jerseys/old.jpg", "images/thumbnails/stale.png"}
	if !reflect.DeepEqual(rep.Orphans, wantOrphans) {
		t.Errorf("orphans = %v, want %v", rep.Orphans, wantOrphans)
	}
}

func TestCheckImagesWithoutImageDirs(t *testing.T) {
	cfg := SiteConfig{AssetsDir: filepath.Join(t.TempDir(), "missing")}
	rep, err := cfg.CheckImages([]catalog.Jersey{{ID: "1", Title: "Home", Images: []string{"a.jpg"}}})
	if err != nil {
		t.Fatalf("CheckImages: %v", err)
	}
	if len(rep.Orphans) != 0 || len(rep.Problems) != 1 {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestCleanImagesRemovesOrphans(t *testing.T) {
	a := newTestApp(t)
	assets := a.Config.AssetsDir
	writeAsset(t, assets, "images/jerseys/home.jpg")
	writeAsset(t, assets, "images/jerseys/old.jpg")
	writeAsset(t, assets, "images/thumbnails/old.jpg")
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Home", Images: []string{"home.jpg"}})
	cookies := login(t, a)

	var rep catalog.ImageReport
	rec := doRequest(a, http.MethodPost, "/api/admin/images/clean", map[string]bool{"dry_run": true}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("dry run: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &rep)
	if len(rep.Orphans) != 2 || rep.Removed != 0 || !rep.DryRun {
		t.Errorf("unexpected dry run report %+v", rep)
	}
	if !fileExists(filepath.Join(assets, "images/jerseys/old.jpg")) {
		t.Fatal("dry run deleted a file")
	}

	rec = doRequest(a, http.MethodPost, "/api/admin/images/clean", struct{}{}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("clean: %d %s", rec.Code, rec.Body.String())
	}
	rep = catalog.ImageReport{}
	decodeBody(t, rec, &rep)
	if rep.Removed != 2 {
		t.Errorf("removed %d, want 2", rep.Removed)
	}
	for _, rel := range []string{"images/jerseys/old.jpg", "images/thumbnails/old.jpg"} {
		if fileExists(filepath.Join(assets, rel)) {
			t.Errorf("%s still exists", rel)
		}
	}
	if !fileExists(filepath.Join(assets, "images/jerseys/home.jpg")) {
		t.Error("referenced image was deleted")
	}
}

func TestImageCheckEndpoint(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Home", Images: []string{"home.jpg"}})

	rec := doRequest(a, http.MethodGet, "/api/admin/images/check", nil)
	assertAPIError(t, rec, http.StatusUnauthorized, "unauthorized")

	cookies := login(t, a)
	rec = doRequest(a, http.MethodGet, "/api/admin/images/check", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("check: %d %s", rec.Code, rec.Body.String())
	}
	var rep catalog.ImageReport
	decodeBody(t, rec, &rep)
	if rep.Checked != 1 || len(rep.Problems) != 1 || rep.Problems[0].Reason != catalog.ImageMissingFile {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestCleanNoImagesChecksAssets(t *testing.T) {
	a := newTestApp(t)
	writeAsset(t, a.Config.AssetsDir, "images/jerseys/home.jpg")
	seedJerseys(t, a,
		catalog.Jersey{ID: "1", Title: "Home", Images: []string{"home.jpg"}},
		catalog.Jersey{ID: "2", Title: "Away", Images: []string{"away.jpg"}},
	)
	res, err := a.Clean(t.Context(), catalog.CleanNoImages, 0)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.Removed != 1 {
		t.Errorf("removed %d, want 1", res.Removed)
	}
	items, _ := a.Store.Jerseys()
	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("unexpected jerseys left: %+v", items)
	}
}
