package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/eringen/jerseyfolio/catalog"
)

// AuthStatus is the backend's view of the current session.
type AuthStatus struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// Login opens an admin session; the cookie is kept in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.call(ctx, http.MethodPost, "/api/auth/login", body, nil)
}

// Logout ends the admin session.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", struct{}{}, nil)
}

// Status reports whether the session is authenticated.
func (c *Client) Status(ctx context.Context) (AuthStatus, error) {
	var st AuthStatus
	err := c.call(ctx, http.MethodGet, "/api/auth/status", nil, &st)
	return st, err
}

// SaveJerseys replaces the whole jerseys document.
func (c *Client) SaveJerseys(ctx context.Context, items []catalog.Jersey) error {
	body := struct {
		Jerseys []catalog.Jersey `json:"jerseys"`
	}{items}
	return c.call(ctx, http.MethodPost, "/api/jerseys", body, nil)
}

// UpdateCover sets a jersey's thumbnail to one of its images.
func (c *Client) UpdateCover(ctx context.Context, id, image string) error {
	body := map[string]string{"id": id, "thumbnail": image}
	return c.call(ctx, http.MethodPost, "/api/jerseys/update-cover", body, nil)
}

// CreateCategory adds a category. The backend derives the id from name.
func (c *Client) CreateCategory(ctx context.Context, name, color string) (catalog.Category, error) {
	var out struct {
		Category catalog.Category `json:"category"`
	}
	err := c.call(ctx, http.MethodPost, "/api/categories/create", map[string]string{"name": name, "color": color}, &out)
	return out.Category, err
}

// UpdateCategory renames or recolors a category.
func (c *Client) UpdateCategory(ctx context.Context, id, name, color string) error {
	body := map[string]string{"id": id, "name": name, "color": color}
	return c.call(ctx, http.MethodPost, "/api/categories/update", body, nil)
}

// DeleteCategory removes a category definition. Jerseys keep the id.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/categories/delete", map[string]string{"id": id}, nil)
}

// CreateTag adds a tag.
func (c *Client) CreateTag(ctx context.Context, name, color string) (catalog.Tag, error) {
	var out struct {
		Tag catalog.Tag `json:"tag"`
	}
	err := c.call(ctx, http.MethodPost, "/api/tags/create", map[string]string{"name": name, "color": color}, &out)
	return out.Tag, err
}

// UpdateTag renames or recolors a tag.
func (c *Client) UpdateTag(ctx context.Context, id, name, color string) error {
	body := map[string]string{"id": id, "name": name, "color": color}
	return c.call(ctx, http.MethodPost, "/api/tags/update", body, nil)
}

// DeleteTag removes a tag and strips it from jerseys.
func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/tags/delete", map[string]string{"id": id}, nil)
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalJerseys       int            `json:"total_jerseys"`
	ActiveJerseys      int            `json:"active_jerseys"`
	InactiveJerseys    int            `json:"inactive_jerseys"`
	Categories         int            `json:"categories"`
	Tags               int            `json:"tags"`
	DanglingCategories int            `json:"dangling_categories"`
	DanglingTags       int            `json:"dangling_tags"`
	TopViewed          []ViewCount    `json:"top_viewed"`
	ByCategory         map[string]int `json:"by_category"`
	LastUpdated        string         `json:"last_updated,omitempty"`
}

// ViewCount is a jersey and its view count.
type ViewCount struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Views int    `json:"views"`
}

// Stats fetches the admin summary.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := c.call(ctx, http.MethodGet, "/api/admin/stats", nil, &st)
	return st, err
}

// Clean runs a catalog cleanup on the backend.
func (c *Client) Clean(ctx context.Context, mode catalog.CleanMode, n int) (catalog.CleanResult, error) {
	var res catalog.CleanResult
	body := map[string]any{"mode": mode, "number": n}
	err := c.call(ctx, http.MethodPost, "/api/admin/clean", body, &res)
	return res, err
}

// CheckImages reports jerseys with unusable images and unreferenced files.
func (c *Client) CheckImages(ctx context.Context) (catalog.ImageReport, error) {
	var rep catalog.ImageReport
	err := c.call(ctx, http.MethodGet, "/api/admin/images/check", nil, &rep)
	return rep, err
}

// CleanImages deletes image files no jersey references.
func (c *Client) CleanImages(ctx context.Context, dryRun bool) (catalog.ImageReport, error) {
	var rep catalog.ImageReport
	err := c.call(ctx, http.MethodPost, "/api/admin/images/clean", map[string]bool{"dry_run": dryRun}, &rep)
	return rep, err
}

// Revision describes a stored snapshot of a document.
type Revision struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Reason    string    `json:"reason"`
	Items     int       `json:"items"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Revisions lists stored snapshots of a document, newest first.
func (c *Client) Revisions(ctx context.Context, document string) ([]Revision, error) {
	var out struct {
		Revisions []Revision `json:"revisions"`
	}
	path := "/api/admin/revisions"
	if document != "" {
		path += "?" + url.Values{"document": {document}}.Encode()
	}
	err := c.call(ctx, http.MethodGet, path, nil, &out)
	return out.Revisions, err
}

// Restore writes a stored snapshot back as the current document.
func (c *Client) Restore(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/admin/revisions/"+url.PathEscape(id)+"/restore", struct{}{}, nil)
}
