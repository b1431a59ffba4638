// Package scaffold lays out a new jerseyfolio site directory: an example
// environment file, the public assets the server expects and a README.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Templates contains all scaffold template files.
// Files use Go text/template syntax and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS

const root = "templates"

// Data holds the template variables passed to every scaffold template.
type Data struct {
	SiteName      string
	SiteURL       string
	AdminUsername string
	SessionSecret string
}

// ErrExists is returned when the target directory is already present.
var ErrExists = errors.New("scaffold: directory already exists")

// Generate renders every template into dir and returns the created paths.
// The .tmpl suffix is stripped and "dotenv" becomes ".env.example".
func Generate(dir string, data Data) ([]string, error) {
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, dir)
	}
	if data.SiteName == "" {
		data.SiteName = Title(filepath.Base(dir))
	}
	if data.AdminUsername == "" {
		data.AdminUsername = "admin"
	}

	var created []string
	err := fs.WalkDir(Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out := strings.TrimSuffix(filepath.Join(dir, rel), ".tmpl")
		if filepath.Base(out) == "dotenv" {
			out = filepath.Join(filepath.Dir(out), ".env.example")
		}

		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}

		content, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scaffold: read %s: %w", path, err)
		}
		tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("scaffold: parse %s: %w", path, err)
		}
		if err := render(out, tmpl, data); err != nil {
			return err
		}
		created = append(created, out)
		return nil
	})
	return created, err
}

func render(out string, tmpl *template.Template, data Data) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("scaffold: create %s: %w", out, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("scaffold: execute %s: %w", tmpl.Name(), err)
	}
	return nil
}

// Title converts a hyphenated or lowercase name to a title-case string.
// e.g. "club-shirts" -> "Club Shirts"
func Title(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
