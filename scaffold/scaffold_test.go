package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateWritesSite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "club-shirts")
	created, err := Generate(dir, Data{
		SiteURL:       "https://shirts.example",
		SessionSecret: "s3cret",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := map[string]bool{
		filepath.Join(dir, ".env.example"):          false,
		filepath.Join(dir, "README.md"):             false,
		filepath.Join(dir, "public", "robots.txt"):  false,
		filepath.Join(dir, "public", "favicon.svg"): false,
	}
	for _, p := range created {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Errorf("expected %s to be created, got %v", p, created)
		}
	}

	env, err := os.ReadFile(filepath.Join(dir, ".env.example"))
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	for _, line := range []string{`SITE_NAME="Club Shirts"`, "SITE_URL=https://shirts.example", "ADMIN_USERNAME=admin", "SESSION_SECRET=s3cret"} {
		if !strings.Contains(string(env), line) {
			t.Errorf("expected .env.example to contain %q", line)
		}
	}

	robots, err := os.ReadFile(filepath.Join(dir, "public", "robots.txt"))
	if err != nil {
		t.Fatalf("read robots: %v", err)
	}
	if !strings.Contains(string(robots), "Sitemap: https://shirts.example/sitemap.xml") {
		t.Errorf("unexpected robots.txt: %s", robots)
	}
}

func TestGenerateRefusesExistingDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(dir, Data{SiteName: "X"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"club-shirts": "Club Shirts",
		"jerseys":     "Jerseys",
		"a--b":        "A  B",
	}
	for in, want := range tests {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}
