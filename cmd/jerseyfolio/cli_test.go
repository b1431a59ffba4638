package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/jerseyfolio"
	"github.com/eringen/jerseyfolio/catalog"
)

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestInitCmd(t *testing.T) {
	logger = zap.NewNop()
	dir := filepath.Join(t.TempDir(), "club-shirts")

	cmd, out := testCommand()
	if err := runInit(cmd, []string{dir}); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	for _, p := range []string{
		".env.example",
		"public/robots.txt",
		"data/jerseys.json",
		"data/categories.json",
		"data/tags.json",
		"assets/images/jerseys",
		"assets/images/thumbnails",
	} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	env, err := os.ReadFile(filepath.Join(dir, ".env.example"))
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if strings.Contains(string(env), "SESSION_SECRET=\n") {
		t.Error("expected a generated session secret")
	}
	if !strings.Contains(out.String(), "jerseyfolio serve") {
		t.Errorf("expected next steps in output, got %q", out.String())
	}

	// A second run must not overwrite the site.
	if err := runInit(cmd, []string{dir}); err == nil {
		t.Error("expected init into an existing directory to fail")
	}
}

func TestPasswdCmd(t *testing.T) {
	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader("hunter2\n"))
	if err := runPasswd(cmd, nil); err != nil {
		t.Fatalf("runPasswd: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")); err != nil {
		t.Fatalf("hash does not match password: %v", err)
	}

	cmd, _ = testCommand()
	cmd.SetIn(strings.NewReader("\n"))
	if err := runPasswd(cmd, nil); err == nil {
		t.Fatal("expected an empty password to be rejected")
	}
}

func startServer(t *testing.T, items []catalog.Jersey) string {
	t.Helper()
	dir := t.TempDir()
	app := jerseyfolio.New(jerseyfolio.SiteConfig{
		DataDir:       filepath.Join(dir, "data"),
		AssetsDir:     filepath.Join(dir, "assets"),
		DatabasePath:  filepath.Join(dir, "revisions.db"),
		AdminPassword: "secret",
		SessionSecret: "test-session-secret",
	}, jerseyfolio.WithStaticDir(filepath.Join(dir, "public")))
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("init app: %v", err)
	}
	if err := app.Store.SaveJerseys(items, "fixture"); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	srv := httptest.NewServer(app.Echo)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return srv.URL
}

func TestCatalogListCmd(t *testing.T) {
	logger = zap.NewNop()
	inactive := false
	serverURL = startServer(t, []catalog.Jersey{
		{ID: "1", Title: "Domicile 2024", Category: "domicile", Year: catalog.NumericYear(2024), Images: []string{"a.jpg"}, Tags: []string{"vintage"}},
		{ID: "2", Title: "Extérieur 2023", Category: "exterieur", Year: catalog.NumericYear(2023), Images: []string{"b.jpg"}},
		{ID: "3", Title: "Hidden", Category: "domicile", Images: []string{"c.jpg"}, Active: &inactive},
	})
	t.Cleanup(func() { serverURL = "" })

	listSearch = "vintage"
	t.Cleanup(func() { listSearch = "" })

	cmd, out := testCommand()
	if err := runCatalogList(cmd, nil); err != nil {
		t.Fatalf("runCatalogList: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Domicile 2024") {
		t.Errorf("expected the vintage jersey, got:\n%s", got)
	}
	if strings.Contains(got, "Extérieur 2023") || strings.Contains(got, "Hidden") {
		t.Errorf("expected only matching active jerseys, got:\n%s", got)
	}
	if !strings.Contains(got, "page 1 of 1, 1 jerseys") {
		t.Errorf("expected pagination footer, got:\n%s", got)
	}
}

func TestCatalogListOrderDefault(t *testing.T) {
	f := catalogListCmd.Flags().Lookup("order")
	if f == nil {
		t.Fatal("catalog list has no --order flag")
	}
	if f.DefValue != string(catalog.Desc) {
		t.Errorf("--order default = %q, want %q", f.DefValue, catalog.Desc)
	}
	if listOrder != string(catalog.Desc) {
		t.Errorf("listOrder = %q before flags are parsed", listOrder)
	}
}

func TestCleanCmdDryRun(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "revisions.db"))

	store, err := jerseyfolio.NewStore(filepath.Join(dir, "data"), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	items := []catalog.Jersey{
		{ID: "1", Title: "Home", Images: []string{"a.jpg"}},
		{ID: "2", Title: "home", Images: []string{"b.jpg"}},
		{ID: "3", Title: "Away", Images: []string{"c.jpg"}},
	}
	if err := store.SaveJerseys(items, "fixture"); err != nil {
		t.Fatalf("SaveJerseys: %v", err)
	}

	cleanMode, cleanDryRun = string(catalog.CleanDuplicates), true
	t.Cleanup(func() { cleanMode, cleanDryRun = string(catalog.CleanDuplicates), false })

	cmd, out := testCommand()
	if err := runClean(cmd, nil); err != nil {
		t.Fatalf("runClean: %v", err)
	}
	if !strings.Contains(out.String(), "kept 2 of 3 jerseys, removed 1") {
		t.Errorf("unexpected output %q", out.String())
	}
	left, err := store.Jerseys()
	if err != nil {
		t.Fatalf("Jerseys: %v", err)
	}
	if len(left) != 3 {
		t.Errorf("dry run wrote the document: %d jerseys left", len(left))
	}

	cleanDryRun = false
	cmd, _ = testCommand()
	if err := runClean(cmd, nil); err != nil {
		t.Fatalf("runClean: %v", err)
	}
	left, _ = store.Jerseys()
	if len(left) != 2 {
		t.Errorf("expected 2 jerseys after clean, got %d", len(left))
	}
}

func TestCleanCmdImages(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "revisions.db"))
	t.Setenv("ASSETS_DIR", assets)

	for _, rel := range []string{"images/jerseys/home.jpg", "images/jerseys/unused.jpg"} {
		p := filepath.Join(assets, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := jerseyfolio.NewStore(filepath.Join(dir, "data"), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	items := []catalog.Jersey{
		{ID: "1", Title: "Home", Images: []string{"home.jpg"}},
		{ID: "2", Title: "Away", Images: []string{"away.jpg"}},
	}
	if err := store.SaveJerseys(items, "fixture"); err != nil {
		t.Fatalf("SaveJerseys: %v", err)
	}

	cleanMode, cleanDryRun, cleanImages = string(catalog.CleanNoImages), true, true
	t.Cleanup(func() { cleanMode, cleanDryRun, cleanImages = string(catalog.CleanDuplicates), false, false })

	cmd, out := testCommand()
	if err := runClean(cmd, nil); err != nil {
		t.Fatalf("runClean: %v", err)
	}
	got := out.String()
	for _, want := range []string{"kept 1 of 2 jerseys, removed 1", "file not found", "images/jerseys/unused.jpg"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
	if _, err := os.Stat(filepath.Join(assets, "images/jerseys/unused.jpg")); err != nil {
		t.Fatalf("dry run deleted the unused image: %v", err)
	}

	cleanDryRun = false
	cmd, out = testCommand()
	if err := runClean(cmd, nil); err != nil {
		t.Fatalf("runClean: %v", err)
	}
	if !strings.Contains(out.String(), "removed 1 of 1 unreferenced image files") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(assets, "images/jerseys/unused.jpg")); !os.IsNotExist(err) {
		t.Errorf("unused image still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(assets, "images/jerseys/home.jpg")); err != nil {
		t.Errorf("referenced image removed: %v", err)
	}
	left, _ := store.Jerseys()
	if len(left) != 1 || left[0].ID != "1" {
		t.Errorf("unexpected jerseys left: %+v", left)
	}
}
